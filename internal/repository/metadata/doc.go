// Package metadata implements persistence for package metadata slots.
//
// The FileStore owns currentPackage.json and oldPackage.json. The current slot
// is replaced atomically through go-update, the old slot is produced by copying
// the current one, and snapshots allow an aborted install to put both back.
package metadata
