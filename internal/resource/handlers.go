package resource

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"lastid.org/internal/audit"
	"lastid.org/internal/identity"
	"lastid.org/internal/ids"
	"lastid.org/internal/scope"
)

// Handlers holds the concrete disclosure handlers behind the registry.
type Handlers struct {
	store     identity.Store
	projector *identity.UserInfoProjector
	now       func() time.Time
}

// NewHandlers constructs the handler set.
func NewHandlers(store identity.Store, projector *identity.UserInfoProjector) *Handlers {
	return &Handlers{store: store, projector: projector, now: time.Now}
}

// ID returns the caller's identity. With all=true the full projection under
// the token's effective scope is returned with permissions; otherwise a
// minimal id-only projection without permissions.
func (h *Handlers) ID(ctx context.Context, req *Request) (identity.Document, error) {
	if parseBool(req.Args.Get("all")) {
		return h.projector.Project(ctx, req.User, req.Client, req.Token.EffectiveScope(), true, "")
	}
	return h.projector.Project(ctx, req.User, req.Client, scope.New("id"), false, "")
}

// SessionVerify authenticates a session id on behalf of the token's user and
// records an access touch when it checks out.
func (h *Handlers) SessionVerify(ctx context.Context, req *Request) (identity.Document, error) {
	sessionID := req.Args.Get("sessionid")
	session, err := h.store.SessionByBuid(ctx, sessionID)
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		return nil, err
	}
	now := h.now()
	if session == nil || session.Expired(now) || req.User == nil || session.UserBuid != req.User.Buid {
		return identity.Document{"active": false}, nil
	}
	if err := h.store.TouchSession(ctx, session.Buid, req.Client.Buid); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "session.access", map[string]any{
		"sessionid": session.Buid,
		"userid":    session.UserBuid,
		"client":    req.Client.Buid,
	})
	userUUID := session.UserUUID
	if userUUID == "" {
		userUUID, _ = ids.BuidToUUID(session.UserBuid)
	}
	return identity.Document{
		"active":    true,
		"sessionid": session.Buid,
		"userid":    session.UserBuid,
		"buid":      session.UserBuid,
		"user_uuid": userUUID,
		"sudo":      session.HasSudo(now),
	}, nil
}

// AvatarEdit overwrites the user's avatar URL. Only absolute HTTPS URLs with
// a host are accepted.
func (h *Handlers) AvatarEdit(ctx context.Context, req *Request) (identity.Document, error) {
	avatar := req.Args.Get("avatar")
	parsed, err := url.Parse(avatar)
	if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		return nil, validationErr("invalid avatar URL")
	}
	if err := h.store.UpdateUserAvatar(ctx, req.User.Buid, avatar); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "user.avatar.update", map[string]any{
		"userid": req.User.Buid,
		"client": req.Client.Buid,
	})
	return identity.Document{"avatar": avatar}, nil
}

// Email returns the primary address, plus all non-private addresses when
// all=true.
func (h *Handlers) Email(ctx context.Context, req *Request) (identity.Document, error) {
	doc := identity.Document{"email": req.User.Email}
	if parseBool(req.Args.Get("all")) {
		emails, err := h.store.UserEmails(ctx, req.User.Buid)
		if err != nil {
			return nil, err
		}
		all := make([]string, 0, len(emails))
		for _, e := range emails {
			if !e.Private {
				all = append(all, e.Address)
			}
		}
		doc["all"] = all
	}
	return doc, nil
}

// Phone returns the primary number, plus all non-private numbers when
// all=true.
func (h *Handlers) Phone(ctx context.Context, req *Request) (identity.Document, error) {
	doc := identity.Document{"phone": req.User.Phone}
	if parseBool(req.Args.Get("all")) {
		phones, err := h.store.UserPhones(ctx, req.User.Buid)
		if err != nil {
			return nil, err
		}
		all := make([]string, 0, len(phones))
		for _, p := range phones {
			if !p.Private {
				all = append(all, p.Number)
			}
		}
		doc["all"] = all
	}
	return doc, nil
}

// ExternalIDs discloses external-login provider records, including raw OAuth
// token material. The registry restricts this resource to trusted clients.
func (h *Handlers) ExternalIDs(ctx context.Context, req *Request) (identity.Document, error) {
	service := req.Args.Get("service")
	ids, err := h.store.ExternalIDs(ctx, req.User.Buid)
	if err != nil {
		return nil, err
	}
	doc := identity.Document{}
	for _, ext := range ids {
		if service != "" && ext.Service != service {
			continue
		}
		doc[ext.Service] = identity.Document{
			"userid":             ext.UserID,
			"username":           ext.Username,
			"oauth_token":        ext.OAuthToken,
			"oauth_token_secret": ext.OAuthTokenSecret,
			"oauth_token_type":   ext.OAuthTokenType,
		}
	}
	return doc, nil
}

// Organizations is a single-topic projection wrapper.
func (h *Handlers) Organizations(ctx context.Context, req *Request) (identity.Document, error) {
	return h.projector.Project(ctx, req.User, req.Client, scope.New("organizations"), false, "")
}

// Teams is a single-topic projection wrapper.
func (h *Handlers) Teams(ctx context.Context, req *Request) (identity.Document, error) {
	return h.projector.Project(ctx, req.User, req.Client, scope.New("teams"), false, "")
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	return false
}
