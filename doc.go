// Package schemavc provides Git-backed version control for database
// schema objects.
//
// schemavc tracks tables, views, functions, indexes, constraints,
// sequences, and types: every observed definition change is hashed,
// classified structurally, and reflected in a semantic version, and the
// tracked object set can be snapshotted into an immutable commit graph
// with branches, tags, diffing, three-way merge, and migration
// generation.
//
// # Quick Start
//
// Create an in-memory instance:
//
//	persistence, _ := vcs.NewMemoryPersistence()
//	instance := schemavc.Open(persistence)
//	eng := instance.Engine(core.Identity{Name: "App", Email: "app@example.com"})
//
//	eng.Apply(track.ChangeEvent{
//		Ref:        core.ObjectRef{Type: core.TableObject, Schema: "public", Name: "users"},
//		Kind:       core.CreateChange,
//		Definition: "CREATE TABLE users (id int NOT NULL, name varchar(100))",
//	})
//	eng.CommitSnapshot("master", "initial schema")
//
// Later changes bump each object's semantic version by the severity of
// the structural difference: incompatible changes are MAJOR, additive
// changes MINOR, cosmetic changes PATCH.
//
//	changes, _ := eng.Diff("master", "feature")
//	forward, backward, _ := eng.GenerateMigration("master", "feature")
//
// # Storage
//
// State persists through go-git plumbing: definitions are blobs, object
// sets are trees, snapshots are commits, and branches are refs, so a
// file-backed instance (vcs.NewFilePersistence) is an ordinary Git
// repository inspectable with standard tooling.
package schemavc
