// Package internal contains the implementation packages of pagesmith.
//
// # Package Organization
//
// The document pipeline, bottom up:
//
//   - sanitize: page names, content keys and component ids
//   - markup: the tag vocabulary, the byte-span index used for
//     source-preserving edits and the parsed-tree helpers
//   - content: key and site extraction
//   - keys: unique key allocation
//   - merge: applies one edit to a stored document
//   - components: component fragments, the catalog and instance sync
//   - styles: captured stylesheets and their placeholders
//   - binding: data sources and bound lists
//   - publish: the editor-free copy of the site
//
// Around it:
//
//   - fragments: file and SQLite stores for fragments
//   - storage: the working documents
//   - services: page and publish orchestration
//   - di: wiring of the services from configuration
//   - server, websocket, watcher, scheduler: the outer surfaces
//   - config, errors, logging, metrics, version: the ambient stack
//
// # Inter-Package Communication
//
// Edits flow from the server or the CLI into services.PageService, which
// runs binding, merge, component sync and style capture before an atomic
// write through storage. Publishing reads the stored documents only.
// The watcher and scheduler feed the same services, and the websocket
// manager reports every change to connected editors.
package internal
