package ledger

import "errors"

// Sentinel errors shared by the core stores and the importers/matcher/merger
// that sit on top of them. Grouped the same way the teacher groups its
// cross-layer signaling errors (internal/errs).
var (
	// ErrDuplicateKey is returned by Create when a secondary index key
	// collides with an existing entry.
	ErrDuplicateKey = errors.New("duplicate_key")
	// ErrUnknownID is returned by Save when the id does not exist in the store.
	ErrUnknownID = errors.New("unknown_id")
	// ErrImmutableField is returned by Save when an immutable identity field
	// would change value.
	ErrImmutableField = errors.New("immutable_field")
	// ErrNoAccounts is returned by GetByNameFuzzy when the store is empty.
	ErrNoAccounts = errors.New("no_accounts")

	// ErrAccountConflict is raised by the ledger importer when a candidate
	// account matches more than one existing account, or matches exactly one
	// that isn't eligible for merge.
	ErrAccountConflict = errors.New("account_conflict")
	// ErrMissingAccount is raised by the ledger importer when a transaction
	// row references a source/destination account that cannot be resolved.
	ErrMissingAccount = errors.New("missing_account")
	// ErrUnconfiguredAccount is raised by the feed matcher when the owner-side
	// account for a feed transaction is absent or not Asset/Liability.
	ErrUnconfiguredAccount = errors.New("unconfigured_account")
	// ErrUnmatchedTransfer is raised when a feed-internal-transfer pool has a
	// leftover entry after fusion.
	ErrUnmatchedTransfer = errors.New("unmatched_transfer")
	// ErrInvalidKind is raised by the exporter's kind table when a
	// (sourceType, destinationType) pair has no valid mapping.
	ErrInvalidKind = errors.New("invalid_kind")
)
