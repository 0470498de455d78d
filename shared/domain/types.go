package domain

type (
	ChannelId = string
	MessageId = string
	UserId    = string

	// LocalId is the client-generated identity of an attachment draft.
	LocalId = string

	// RemoteId identifies the placeholder attachment record on the store.
	RemoteId = string

	// StorageRef is the opaque handle returned once binary content has
	// been durably persisted. An attachment without one is not sendable.
	StorageRef = string

	// CorrelationToken ties a client mutation to the speculative local
	// record it will eventually replace. The store echoes it back.
	CorrelationToken = string
)
