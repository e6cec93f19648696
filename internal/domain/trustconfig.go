package domain

import (
	"time"
)

// TrustConfigEntry is one operational key/value knob, updatable at runtime
// through the admin API.
type TrustConfigEntry struct {
	Key         string    `json:"key" db:"config_key"`
	Value       string    `json:"value" db:"config_value"`
	Description string    `json:"description" db:"description"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
