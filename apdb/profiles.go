package apdb

import (
	"go.etcd.io/bbolt"
)

var profilesBucket = []byte("profiles")

// Profile is one saved access point configuration, keyed by the radio
// interface it belongs to.
type Profile struct {
	Handle          string `json:"handle"`
	SSID            string `json:"ssid"`
	Security        string `json:"security"`
	Passphrase      string `json:"passphrase,omitempty"`
	Band            string `json:"band"`
	Channel         int    `json:"channel"`
	ClientIsolation bool   `json:"clientIsolation"`
	AutoStart       bool   `json:"autoStart"`
}

func (db *DB) SetProfile(profile *Profile) error {
	return db.setJSON(profilesBucket, []byte(profile.Handle), profile)
}

func (db *DB) GetProfile(handle string) (*Profile, error) {
	profile := &Profile{}

	found, err := db.getJSON(profilesBucket, []byte(handle), profile)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return profile, nil
}

func (db *DB) GetProfiles() ([]*Profile, error) {
	var profiles []*Profile

	// Collect keys first, then decode through getJSON so null
	// tombstones are skipped consistently.
	var handles []string

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(profilesBucket)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(key []byte, _ []byte) error {
			handles = append(handles, string(key))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	for _, handle := range handles {
		profile, err := db.GetProfile(handle)
		if err != nil {
			return nil, err
		}

		if profile != nil {
			profiles = append(profiles, profile)
		}
	}

	return profiles, nil
}

func (db *DB) DeleteProfile(handle string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(profilesBucket)
		if bucket == nil {
			return nil
		}

		return bucket.Delete([]byte(handle))
	})
}
