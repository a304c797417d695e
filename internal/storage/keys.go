package storage

import (
	"fmt"
)

// Keys generates Redis keys with consistent naming
type Keys struct {
	prefix string
}

// NewKeys creates a new Keys generator
func NewKeys(prefix string) *Keys {
	return &Keys{prefix: prefix}
}

// Usage returns the hash holding one model's token counters for a day
// (YYYY-MM-DD).
func (k *Keys) Usage(model, date string) string {
	return fmt.Sprintf("%susage:%s:%s", k.prefix, date, model)
}

// UsageModels returns the set of models that recorded usage on a day.
func (k *Keys) UsageModels(date string) string {
	return fmt.Sprintf("%susage:%s:models", k.prefix, date)
}

// Session returns the hash holding a session's metadata.
func (k *Keys) Session(id string) string {
	return fmt.Sprintf("%ssession:%s", k.prefix, id)
}

// SessionMessages returns the list holding a session's encoded messages.
func (k *Keys) SessionMessages(id string) string {
	return fmt.Sprintf("%ssession:%s:messages", k.prefix, id)
}
