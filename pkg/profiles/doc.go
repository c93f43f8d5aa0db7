// Package profiles stores the application profile row that accompanies every
// provisioned identity.
//
// Two backends implement Store:
//
//   - RESTStore goes through the hosted REST layer with the service key
//   - PostgresStore talks to Postgres directly (lib/pq); its schema is applied
//     with Migrate, which runs the embedded goose migrations
//
// Duplicate ids surface as ErrDuplicate from Insert on both backends.
package profiles
