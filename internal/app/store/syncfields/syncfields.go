// Package syncfields holds the shared vocabulary for idempotent upserts of
// identity-provider mirrored entities (organizations and users).
package syncfields

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Mode selects how known fields are applied by an upsert.
type Mode int

const (
	// FillMissing writes fields only when the document is inserted. An
	// existing document is returned unchanged. Used by the lazy path.
	FillMissing Mode = iota
	// Overwrite writes fields on insert and on update. Used by the
	// authoritative webhook path.
	Overwrite
)

func (m Mode) String() string {
	if m == Overwrite {
		return "overwrite"
	}
	return "fill_missing"
}

// Update builds the update document for an upsert keyed by external_id.
// known holds the fields the caller actually knows; nil values are skipped so
// a partial payload never blanks out data learned elsewhere.
func Update(known map[string]*string, mode Mode, now time.Time) bson.M {
	set := bson.M{}
	for k, v := range known {
		if v != nil {
			set[k] = *v
		}
	}

	onInsert := bson.M{"created_at": now}
	if mode == Overwrite {
		set["updated_at"] = now
		return bson.M{"$set": set, "$setOnInsert": onInsert}
	}

	for k, v := range set {
		onInsert[k] = v
	}
	onInsert["updated_at"] = now
	return bson.M{"$setOnInsert": onInsert}
}
