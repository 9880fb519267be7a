package labstep

import (
	"fmt"
	"sort"

	"github.com/iancoleman/strcase"
)

// Kind identifies an entity type. Its value is the REST entity name used
// in "/api/generic/{entity}" paths.
type Kind string

const (
	KindExperiment         Kind = "experiment_workflow"
	KindExperimentProtocol Kind = "experiment"
	KindProtocol           Kind = "protocol_collection"
	KindProtocolVersion    Kind = "protocol"
	KindResource           Kind = "resource"
	KindResourceCategory   Kind = "resource_template"
	KindResourceItem       Kind = "resource_item"
	KindResourceLocation   Kind = "resource_location"
	KindDevice             Kind = "device"
	KindOrderRequest       Kind = "order_request"
	KindPurchaseOrder      Kind = "purchase_order"
	KindWorkspace          Kind = "group"
	KindWorkspaceMember    Kind = "user_group"
	KindOrganization       Kind = "organization"
	KindOrganizationUser   Kind = "organization_user"
	KindUser               Kind = "user"
	KindFile               Kind = "file"
	KindComment            Kind = "comment"
	KindTag                Kind = "tag"
	KindMetadata           Kind = "metadata"
	KindCollaborator       Kind = "entity_user"
	KindSharelink          Kind = "share_link"
	KindPermission         Kind = "permission"
)

type kindInfo struct {
	guidKeyed       bool
	workspaceScoped bool
	taggable        bool
	route           string
}

var kinds = map[Kind]kindInfo{
	KindExperiment:         {workspaceScoped: true, taggable: true},
	KindExperimentProtocol: {},
	KindProtocol:           {workspaceScoped: true, taggable: true},
	KindProtocolVersion:    {},
	KindResource:           {workspaceScoped: true, taggable: true},
	KindResourceCategory:   {workspaceScoped: true, taggable: true, route: "resource-category"},
	KindResourceItem:       {workspaceScoped: true},
	KindResourceLocation:   {guidKeyed: true, workspaceScoped: true},
	KindDevice:             {workspaceScoped: true, taggable: true},
	KindOrderRequest:       {workspaceScoped: true, taggable: true},
	KindPurchaseOrder:      {workspaceScoped: true},
	KindWorkspace:          {route: "workspace"},
	KindWorkspaceMember:    {},
	KindOrganization:       {},
	KindOrganizationUser:   {},
	KindUser:               {},
	KindFile:               {workspaceScoped: true},
	KindComment:            {},
	KindTag:                {workspaceScoped: true},
	KindMetadata:           {},
	KindCollaborator:       {},
	KindSharelink:          {},
	KindPermission:         {},
}

// aliases maps friendly names onto entity names that differ from them.
var aliases = map[string]Kind{
	"workspace":           KindWorkspace,
	"experiment_protocol": KindExperimentProtocol,
	"resource_category":   KindResourceCategory,
	"protocol_version":    KindProtocolVersion,
	"workspace_member":    KindWorkspaceMember,
	"collaborator":        KindCollaborator,
	"sharelink":           KindSharelink,
}

// ParseKind accepts an entity name or a friendly alias in any case style:
// "experiment_workflow", "ExperimentWorkflow", "resource-category".
func ParseKind(s string) (Kind, error) {
	snake := strcase.ToSnake(s)
	if k, ok := aliases[snake]; ok {
		return k, nil
	}
	if _, ok := kinds[Kind(snake)]; ok {
		return Kind(snake), nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Kinds returns every known kind sorted by entity name.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EntityName returns the REST path segment.
func (k Kind) EntityName() string { return string(k) }

func (k Kind) String() string { return string(k) }

// GUIDKeyed reports whether entities of this kind are addressed by guid
// rather than numeric id.
func (k Kind) GUIDKeyed() bool { return kinds[k].guidKeyed }

// WorkspaceScoped reports whether list and create requests carry the
// active workspace as group_id.
func (k Kind) WorkspaceScoped() bool { return kinds[k].workspaceScoped }

// TagType returns the tag namespace for this kind, or "" when entities of
// this kind cannot be tagged.
func (k Kind) TagType() string {
	if !kinds[k].taggable {
		return ""
	}
	return string(k)
}

// Route returns the web app path segment, e.g. "experiment-workflow".
func (k Kind) Route() string {
	if r := kinds[k].route; r != "" {
		return r
	}
	return strcase.ToKebab(string(k))
}
