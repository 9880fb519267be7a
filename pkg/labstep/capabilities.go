package labstep

// Commentable entities carry a comment thread.
type Commentable interface {
	Object
	Comments() *Comments
}

// Taggable entities can be tagged within their kind's tag namespace.
type Taggable interface {
	Object
	Tags() *Tags
}

// Shareable entities can be shared with other workspaces.
type Shareable interface {
	Object
	Sharing() *Sharing
}

// HasMetadata entities carry a metadata thread.
type HasMetadata interface {
	Object
	Metadata() *MetadataFields
}

// Assignable entities have collaborators.
type Assignable interface {
	Object
	Collaborators() *Collaborators
}

// Threads is embedded by wrappers whose responses carry comment and
// metadata threads.
type Threads struct {
	Thread         *Summary `json:"thread"`
	MetadataThread *Summary `json:"metadata_thread"`
}

var (
	_ Commentable = (*Experiment)(nil)
	_ Taggable    = (*Experiment)(nil)
	_ Shareable   = (*Experiment)(nil)
	_ HasMetadata = (*Experiment)(nil)
	_ Assignable  = (*Experiment)(nil)

	_ Commentable = (*ExperimentProtocol)(nil)
	_ HasMetadata = (*ExperimentProtocol)(nil)

	_ Commentable = (*Protocol)(nil)
	_ Taggable    = (*Protocol)(nil)
	_ Shareable   = (*Protocol)(nil)
	_ Assignable  = (*Protocol)(nil)

	_ Commentable = (*Resource)(nil)
	_ Taggable    = (*Resource)(nil)
	_ Shareable   = (*Resource)(nil)
	_ HasMetadata = (*Resource)(nil)

	_ Taggable    = (*ResourceCategory)(nil)
	_ Shareable   = (*ResourceCategory)(nil)
	_ HasMetadata = (*ResourceCategory)(nil)

	_ Commentable = (*ResourceItem)(nil)
	_ HasMetadata = (*ResourceItem)(nil)

	_ Commentable = (*ResourceLocation)(nil)
	_ HasMetadata = (*ResourceLocation)(nil)

	_ Commentable = (*Device)(nil)
	_ Taggable    = (*Device)(nil)
	_ Shareable   = (*Device)(nil)
	_ HasMetadata = (*Device)(nil)

	_ Commentable = (*OrderRequest)(nil)
	_ Taggable    = (*OrderRequest)(nil)
	_ Shareable   = (*OrderRequest)(nil)
	_ HasMetadata = (*OrderRequest)(nil)

	_ Commentable = (*PurchaseOrder)(nil)
	_ Shareable   = (*PurchaseOrder)(nil)
)
