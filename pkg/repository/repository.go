package repository

import (
	"context"
	"strings"

	"github.com/crossinsure/crossinsure/pkg/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

const firestoreScheme = "firestore://"

// New opens the repository named by dsn.
//
//	firestore://<project>[/<database>]   Cloud Firestore
//	postgres://...                      PostgreSQL
//	sqlite://<path>, <path>, :memory:   SQLite
func New(ctx context.Context, dsn string) (interfaces.Repository, error) {
	if dsn == "" {
		return nil, goerr.New("database DSN is required")
	}

	if strings.HasPrefix(dsn, firestoreScheme) {
		project, database, _ := strings.Cut(strings.TrimPrefix(dsn, firestoreScheme), "/")
		return NewFirestore(ctx, project, database)
	}

	return NewSQL(dsn)
}
