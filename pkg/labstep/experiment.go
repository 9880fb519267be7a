package labstep

import (
	"context"
	"fmt"
	"time"

	"github.com/labstep/labstep-go/pkg/optional"
)

// RichText is an embedded ProseMirror document holder, such as an
// experiment's root entry or a protocol's current version.
type RichText struct {
	ID    int64       `json:"id"`
	State interface{} `json:"state"`
}

func (r *RichText) state() interface{} {
	if r == nil {
		return nil
	}
	return r.State
}

// documentHolder is implemented by entities with a rich-text body.
type documentHolder interface {
	document() interface{}
}

// Experiment is an experiment workflow: an entry document plus the
// protocols run as part of it.
type Experiment struct {
	Entity
	Threads
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Root      *RichText  `json:"root_experiment"`
}

// ExperimentEdit changes experiment fields. Unset fields are kept; Null
// clears started_at or ended_at.
type ExperimentEdit struct {
	Name      optional.Value[string]
	Entry     optional.Value[interface{}]
	StartedAt optional.Value[time.Time]
	EndedAt   optional.Value[time.Time]
}

// GetExperiment fetches an experiment by id.
func (c *Client) GetExperiment(ctx context.Context, id int64) (*Experiment, error) {
	return getEntity[Experiment](ctx, c, KindExperiment, idKey(id))
}

// GetExperiments lists experiments in the active workspace.
func (c *Client) GetExperiments(ctx context.Context, opts ListOptions) ([]*Experiment, error) {
	return getEntities[Experiment](ctx, c, KindExperiment, opts)
}

// NewExperiment creates an experiment in the active workspace.
func (c *Client) NewExperiment(ctx context.Context, name string) (*Experiment, error) {
	return newEntity[Experiment](ctx, c, KindExperiment, optional.Fields{"name": name})
}

// Comments returns the experiment's comment client.
func (e *Experiment) Comments() *Comments { return newComments(&e.Entity, e.Thread) }

// Tags returns the experiment's tag client.
func (e *Experiment) Tags() *Tags { return newTags(&e.Entity) }

// Sharing returns the experiment's sharing client.
func (e *Experiment) Sharing() *Sharing { return newSharing(&e.Entity) }

// Metadata returns the experiment's metadata client.
func (e *Experiment) Metadata() *MetadataFields { return newMetadataFields(&e.Entity, e.MetadataThread) }

// Collaborators returns the experiment's collaborator client.
func (e *Experiment) Collaborators() *Collaborators { return newCollaborators(&e.Entity) }

func (e *Experiment) document() interface{} { return e.Root.state() }

// Edit updates the experiment. An Entry is written to the root entry
// document after the other fields; a Null entry clears the document.
func (e *Experiment) Edit(ctx context.Context, edit ExperimentEdit) error {
	f := optional.Fields{}
	f.Put("name", edit.Name).
		Put("started_at", edit.StartedAt).
		Put("ended_at", edit.EndedAt)

	if len(f) > 0 {
		if err := editEntity(ctx, &e.Entity, f); err != nil {
			return err
		}
	}
	switch {
	case edit.Entry.IsNull():
		return e.SetEntry(ctx, nil)
	case edit.Entry.IsSet():
		entry, _ := edit.Entry.Get()
		return e.SetEntry(ctx, entry)
	}
	return nil
}

// Entry returns the entry document as of the last fetch.
func (e *Experiment) Entry() interface{} {
	return e.document()
}

// SetEntry replaces the entry document and refetches the experiment.
func (e *Experiment) SetEntry(ctx context.Context, state interface{}) error {
	if e.client == nil {
		return errUnbound
	}
	if e.Root == nil || e.Root.ID == 0 {
		return fmt.Errorf("experiment %d has no entry document", e.ID)
	}
	if _, err := e.client.edit(ctx, KindExperimentProtocol, idKey(e.Root.ID), optional.Fields{"state": state}); err != nil {
		return err
	}
	return e.Update(ctx)
}

// Complete marks the experiment as ended now.
func (e *Experiment) Complete(ctx context.Context) error {
	return e.Edit(ctx, ExperimentEdit{EndedAt: optional.Set(time.Now().UTC())})
}

// AddProtocol runs the protocol's current version as part of the
// experiment.
func (e *Experiment) AddProtocol(ctx context.Context, p *Protocol) (*ExperimentProtocol, error) {
	if e.client == nil {
		return nil, errUnbound
	}
	if p.LastVersion == nil || p.LastVersion.ID == 0 {
		return nil, fmt.Errorf("%w: protocol %d has no version", ErrValidation, p.ID)
	}
	return newEntity[ExperimentProtocol](ctx, e.client, KindExperimentProtocol, optional.Fields{
		"experiment_workflow_id": e.ID,
		"protocol_id":            p.LastVersion.ID,
	})
}

// Protocols lists the protocols added to the experiment, excluding the
// root entry.
func (e *Experiment) Protocols(ctx context.Context, count int) ([]*ExperimentProtocol, error) {
	if e.client == nil {
		return nil, errUnbound
	}
	return getEntities[ExperimentProtocol](ctx, e.client, KindExperimentProtocol, ListOptions{
		Count: count,
		Filters: map[string]interface{}{
			"experiment_workflow_id": e.ID,
			"is_root":                false,
		},
	})
}

// ExperimentProtocol is a protocol run inside an experiment.
type ExperimentProtocol struct {
	Entity
	Threads
	State        interface{} `json:"state"`
	IsRoot       bool        `json:"is_root"`
	ExperimentID int64       `json:"experiment_workflow_id"`
	StartedAt    *time.Time  `json:"started_at"`
	EndedAt      *time.Time  `json:"ended_at"`
}

// GetExperimentProtocol fetches an experiment protocol by id.
func (c *Client) GetExperimentProtocol(ctx context.Context, id int64) (*ExperimentProtocol, error) {
	return getEntity[ExperimentProtocol](ctx, c, KindExperimentProtocol, idKey(id))
}

// Comments returns the protocol run's comment client.
func (p *ExperimentProtocol) Comments() *Comments { return newComments(&p.Entity, p.Thread) }

// Metadata returns the protocol run's metadata client.
func (p *ExperimentProtocol) Metadata() *MetadataFields {
	return newMetadataFields(&p.Entity, p.MetadataThread)
}

func (p *ExperimentProtocol) document() interface{} { return p.State }

// Body returns the document as of the last fetch.
func (p *ExperimentProtocol) Body() interface{} { return p.State }

// SetBody replaces the document.
func (p *ExperimentProtocol) SetBody(ctx context.Context, state interface{}) error {
	return editEntity(ctx, &p.Entity, optional.Fields{"state": state})
}

// Complete marks the protocol run as ended now.
func (p *ExperimentProtocol) Complete(ctx context.Context) error {
	return editEntity(ctx, &p.Entity, optional.Fields{
		"ended_at": time.Now().UTC().Format(time.RFC3339),
	})
}
