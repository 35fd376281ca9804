// Package models defines domain entities and persistence interfaces for the ChordyPi service.
//
// The package contains two categories of types:
//
// 1. Static and transfer types: plain structs with JSON tags
//   - [ChordEvent] : One chord with its start time, duration and position in the bar
//   - [SongProgression] : A chord chart with key, tempo and source
//   - [PremiumFeatureSet] : Feature name to unlocked flag
//   - [FeaturedSong], [Video] : Catalog and search results
//
// 2. Persistent entities: database-backed models with full lifecycle management
//   - [User] : Accounts keyed by Pi Network uid
//   - [Payment] : Pi payments and their approval/completion state
//   - [LibraryEntry] : Songs a user searched, saved or marked favorite
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
