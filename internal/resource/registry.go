package resource

import (
	"context"
	"net/url"

	"lastid.org/internal/identity"
)

// Request carries the authenticated token, the client the token was issued
// to, and the caller's parameters into a resource handler.
type Request struct {
	Token  *identity.Token
	Client *identity.Client
	User   *identity.User // nil for client-only tokens
	Args   url.Values
}

// HandlerFunc implements one disclosure resource.
type HandlerFunc func(ctx context.Context, req *Request) (identity.Document, error)

// Resource declares one entry of the registry: its public name, a
// human-readable description, the minimum scope topic required (defaulting
// to the resource name), and whether only trusted clients may call it.
type Resource struct {
	Name        string
	Description string
	Scope       string
	TrustedOnly bool
	Handler     HandlerFunc
}

// Mutator is the external collaborator behind the declared-but-deferred
// resources (organization/team edits, notifications). A nil Mutator leaves
// them answering not_implemented.
type Mutator interface {
	Apply(ctx context.Context, resource string, req *Request) (identity.Document, error)
}

// Registry is the immutable table of disclosure resources, built once at
// startup and passed to the dispatcher explicitly.
type Registry struct {
	resources []Resource
	index     map[string]int
}

// NewRegistry assembles the full resource table.
func NewRegistry(h *Handlers, mutator Mutator) *Registry {
	deferred := func(name string) HandlerFunc {
		return func(ctx context.Context, req *Request) (identity.Document, error) {
			if mutator == nil {
				return nil, apiErr(CodeNotImplemented)
			}
			return mutator.Apply(ctx, name, req)
		}
	}
	return newRegistry([]Resource{
		{Name: "id", Description: "Read your name and basic profile data", Handler: h.ID},
		{Name: "session/verify", Description: "Verify user session", Scope: "id", Handler: h.SessionVerify},
		{Name: "avatar/edit", Description: "Update your profile picture", Handler: h.AvatarEdit},
		{Name: "email", Description: "Read your email address", Handler: h.Email},
		{Name: "phone", Description: "Read your phone number", Handler: h.Phone},
		{Name: "user/externalids", Description: "Access your external account information such as Twitter and Google", TrustedOnly: true, Handler: h.ExternalIDs},
		{Name: "organizations", Description: "Read the organizations you are a member of", Handler: h.Organizations},
		{Name: "organizations/new", Description: "Create a new organization", TrustedOnly: true, Handler: deferred("organizations/new")},
		{Name: "organizations/edit", Description: "Edit your organizations", TrustedOnly: true, Handler: deferred("organizations/edit")},
		{Name: "teams", Description: "Read the list of teams in your organizations", Handler: h.Teams},
		{Name: "teams/new", Description: "Create a new team in your organizations", TrustedOnly: true, Handler: deferred("teams/new")},
		{Name: "teams/edit", Description: "Edit your organizations' teams", TrustedOnly: true, Handler: deferred("teams/edit")},
		{Name: "notice/send", Description: "Send you notifications", Handler: deferred("notice/send")},
	})
}

func newRegistry(resources []Resource) *Registry {
	r := &Registry{resources: resources, index: make(map[string]int, len(resources))}
	for i := range r.resources {
		if r.resources[i].Scope == "" {
			r.resources[i].Scope = r.resources[i].Name
		}
		r.index[r.resources[i].Name] = i
	}
	return r
}

// Resources returns the registry entries in declaration order.
func (r *Registry) Resources() []Resource {
	out := make([]Resource, len(r.resources))
	copy(out, r.resources)
	return out
}

// Lookup returns the named resource.
func (r *Registry) Lookup(name string) (Resource, bool) {
	i, ok := r.index[name]
	if !ok {
		return Resource{}, false
	}
	return r.resources[i], true
}

// Dispatch authorizes req against the named resource and runs its handler.
// Lacking the required scope and lacking the trusted flag fail with distinct
// codes so integrators can tell a fixable grant from a hard trust boundary.
func (r *Registry) Dispatch(ctx context.Context, name string, req *Request) (identity.Document, error) {
	res, ok := r.Lookup(name)
	if !ok {
		return nil, apiErr(CodeNotFound)
	}
	if !req.Token.EffectiveScope().Grants(res.Scope) {
		return nil, apiErr(CodeInsufficientScope)
	}
	if res.TrustedOnly && !req.Client.Trusted {
		return nil, apiErr(CodeUntrustedClient)
	}
	// Every disclosure resource answers about a user; client-only tokens
	// have nothing to disclose.
	if req.User == nil {
		return nil, apiErr(CodeTokenWithoutUser)
	}
	return res.Handler(ctx, req)
}
