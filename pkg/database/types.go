package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
)

// ReactionSet maps an emoji to the set of user IDs that reacted with it.
// It is stored as a JSON object so the same column works on PostgreSQL,
// MySQL and SQLite. User IDs inside a set are kept sorted and unique.
type ReactionSet map[string][]string

// Toggle adds userID to the emoji's set, or removes it when already present.
// Empty sets are dropped. It reports whether the user is now reacting.
func (r ReactionSet) Toggle(emoji, userID string) bool {
	users := r[emoji]
	for i, id := range users {
		if id == userID {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(r, emoji)
			} else {
				r[emoji] = users
			}
			return false
		}
	}
	users = append(users, userID)
	sort.Strings(users)
	r[emoji] = users
	return true
}

// Has reports whether userID reacted with emoji.
func (r ReactionSet) Has(emoji, userID string) bool {
	for _, id := range r[emoji] {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r ReactionSet) Clone() ReactionSet {
	if r == nil {
		return nil
	}
	out := make(ReactionSet, len(r))
	for emoji, users := range r {
		out[emoji] = append([]string(nil), users...)
	}
	return out
}

// Scan implements the sql.Scanner interface for reading from the database.
func (r *ReactionSet) Scan(value interface{}) error {
	if value == nil {
		*r = ReactionSet{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("ReactionSet: unsupported scan type")
	}

	if len(data) == 0 {
		*r = ReactionSet{}
		return nil
	}

	set := ReactionSet{}
	if err := json.Unmarshal(data, &set); err != nil {
		return err
	}
	for emoji, users := range set {
		if len(users) == 0 {
			delete(set, emoji)
		}
	}
	*r = set
	return nil
}

// Value implements the driver.Valuer interface for writing to the database.
func (r ReactionSet) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(map[string][]string(r))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// GormDataType returns the GORM data type hint.
func (ReactionSet) GormDataType() string {
	return "text"
}
