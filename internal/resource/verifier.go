package resource

import (
	"context"
	"errors"
	"time"

	"lastid.org/internal/identity"
	"lastid.org/internal/scope"
)

// ValiditySeconds is the period for which a verification assertion may be
// cached by the relying client.
const ValiditySeconds = 120

// WildcardResource is the only per-resource value still accepted by Verify;
// legacy per-resource ACLs are retired.
const WildcardResource = "*"

// Verifier implements the two machine-to-machine token protocols. Callers
// must already be authenticated clients; user sessions never reach here.
type Verifier struct {
	store     identity.Store
	projector *identity.UserInfoProjector
	now       func() time.Time
}

// NewVerifier constructs a Verifier over the given store.
func NewVerifier(store identity.Store, projector *identity.UserInfoProjector) *Verifier {
	return &Verifier{store: store, projector: projector, now: time.Now}
}

// VerifyResult is the successful outcome of Verify or GetScope.
type VerifyResult struct {
	Validity   int
	UserInfo   identity.Document // nil for client-only tokens
	ClientInfo identity.Document
}

// Verify checks that token grants access to resource within the calling
// client's namespace. Only the wildcard resource is recognized.
func (v *Verifier) Verify(ctx context.Context, caller *identity.Client, access, resource string) (*VerifyResult, error) {
	if resource == "" {
		return nil, requestErr(CodeNoResource)
	}
	if resource != WildcardResource {
		return nil, requestErr(CodeUnknownResource)
	}
	if access == "" {
		return nil, requestErr(CodeNoToken)
	}
	if caller.Namespace == "" {
		// A client without a namespace owns no resources to verify against.
		return nil, apiErr(CodeClientNoResources)
	}
	token, err := v.lookupToken(ctx, access)
	if err != nil {
		return nil, err
	}
	effective := token.EffectiveScope()
	if !effective.Contains(caller.Namespace+":"+resource) && !effective.Contains(caller.Namespace+":"+scope.Wildcard) {
		return nil, apiErr(CodeAccessDenied)
	}
	return v.buildResult(ctx, token, effective)
}

// GetScope reports which of the calling client's own resources the token
// grants, with namespace prefixes stripped.
func (v *Verifier) GetScope(ctx context.Context, caller *identity.Client, access string) (*VerifyResult, error) {
	if access == "" {
		return nil, requestErr(CodeNoToken)
	}
	if caller.Namespace == "" {
		return nil, apiErr(CodeClientNoResources)
	}
	token, err := v.lookupToken(ctx, access)
	if err != nil {
		return nil, err
	}
	effective := token.EffectiveScope()
	resources := effective.ResourcesUnder(caller.Namespace)
	if len(resources) == 0 {
		return nil, apiErr(CodeNoAccess)
	}
	result, err := v.buildResult(ctx, token, effective)
	if err != nil {
		return nil, err
	}
	result.ClientInfo["scope"] = resources
	return result, nil
}

func (v *Verifier) lookupToken(ctx context.Context, access string) (*identity.Token, error) {
	token, err := v.store.TokenByAccess(ctx, access)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, apiErr(CodeNoToken)
	}
	if err != nil {
		return nil, err
	}
	if token.Expired(v.now()) {
		return nil, apiErr(CodeNoToken)
	}
	return token, nil
}

func (v *Verifier) buildResult(ctx context.Context, token *identity.Token, effective scope.Set) (*VerifyResult, error) {
	result := &VerifyResult{Validity: ValiditySeconds}

	owning, err := v.store.ClientByKey(ctx, token.ClientBuid)
	if err != nil {
		return nil, err
	}

	if token.UserBuid != "" {
		user, err := v.store.UserByBuid(ctx, token.UserBuid)
		if err != nil {
			return nil, err
		}
		info, err := v.projector.Project(ctx, user, owning, effective, true, "")
		if err != nil {
			return nil, err
		}
		result.UserInfo = info
	}

	// Client info describes the token's owning client, not the caller.
	result.ClientInfo = identity.Document{
		"title":       owning.Title,
		"userid":      owning.OwnerBuid,
		"buid":        owning.OwnerBuid,
		"uuid":        owning.OwnerUUID,
		"owner_title": owning.OwnerTitle,
		"website":     owning.Website,
		"key":         owning.Buid,
		"trusted":     owning.Trusted,
	}
	return result, nil
}
