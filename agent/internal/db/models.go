package db

import "time"

// KVEntry backs the persistent key-value store; Value holds JSON.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// DynamicRule is one installed blocking rule of the host filter set.
// ResourceTypes is a comma separated list.
type DynamicRule struct {
	ID            int    `gorm:"primaryKey;autoIncrement:false"`
	Priority      int    `gorm:"not null"`
	Action        string `gorm:"size:32;not null"`
	URLFilter     string `gorm:"size:512;not null"`
	ResourceTypes string `gorm:"size:255"`
	CreatedAt     time.Time
}

// Cookie mirrors a browser cookie scoped to a domain.
type Cookie struct {
	ID        uint   `gorm:"primaryKey"`
	Domain    string `gorm:"size:255;index;not null"`
	Path      string `gorm:"size:255;not null;default:/"`
	Name      string `gorm:"size:255;not null"`
	Value     string `gorm:"type:text"`
	Secure    bool
	ExpiresAt *time.Time
	CreatedAt time.Time
}
