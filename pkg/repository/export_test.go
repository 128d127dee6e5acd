package repository

import (
	"context"

	"cloud.google.com/go/firestore"
)

// ExecRaw runs a statement outside the repository API, for tests that need to
// put the store into states the API never produces.
func (r *SQL) ExecRaw(sql string, args ...any) error {
	return r.db.Exec(sql, args...).Error
}

// SetFingerprintField overwrites a single field of a stored fingerprint
// document.
func (r *Firestore) SetFingerprintField(ctx context.Context, id, field string, value any) error {
	_, err := r.client.Collection(collectionFingerprints).Doc(id).Update(ctx, []firestore.Update{
		{Path: field, Value: value},
	})
	return err
}
