// Package container reads and writes vaults as KDBX 4 files.
//
// # Mapping
//
// Entries use the standard KDBX fields Title, UserName, Password, URL and
// Notes. Everything the format has no slot for is kept in custom string
// fields on the entry:
//
//	TimeOtp-Secret-Base32   one-time-password secret (protected)
//	IconId                  icon marker
//	AdditionalURLs          URLs after the first, newline separated
//	Tags                    comma separated
//	SORT_ORDER              explicit sort key (decimal)
//	CreatedAt, UpdatedAt    timestamps in ms since the epoch
//	EntryId                 original id when it is not a UUID
//
// Writing a custom field always removes any previous field of the same name
// first, so repeated saves never accumulate duplicates. TOTP_SECRET, used by
// early versions, is still read as a fallback for the OTP secret but is never
// written.
//
// Group icon, color, sort key and creation time are stored as a small JSON
// document in the KDBX group notes.
//
// # Limitations
//
// Containers written by other KeePass clients carry no CreatedAt/UpdatedAt
// fields; such entries are read with the current time as both timestamps.
// Groups whose notes are not our JSON document read with a folder icon, no
// color and sort key 0.
package container
