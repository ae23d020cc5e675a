package domain

import (
	"fmt"
	"strconv"

	"awful/internal/tenant"
)

// OwnerKind is the kind of entity a set of blocks hangs off.
type OwnerKind int

const (
	OwnerSite OwnerKind = iota + 1
	OwnerUser
	OwnerPost
	OwnerTerm
	OwnerComment
)

// OwnerKinds lists every kind in a stable order.
var OwnerKinds = []OwnerKind{OwnerSite, OwnerUser, OwnerPost, OwnerTerm, OwnerComment}

// Root block types, one per owner kind. The root block carries the owner's
// own field data.
const (
	RootSite    = "Awful.RootBlocks.Site"
	RootUser    = "Awful.RootBlocks.User"
	RootPost    = "Awful.RootBlocks.Post"
	RootTerm    = "Awful.RootBlocks.Term"
	RootComment = "Awful.RootBlocks.Comment"
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerSite:
		return "site"
	case OwnerUser:
		return "user"
	case OwnerPost:
		return "post"
	case OwnerTerm:
		return "term"
	case OwnerComment:
		return "comment"
	default:
		return "OwnerKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Valid reports whether k is one of the declared kinds.
func (k OwnerKind) Valid() bool {
	return k >= OwnerSite && k <= OwnerComment
}

// RootType returns the root block type for owners of kind k.
func (k OwnerKind) RootType() string {
	switch k {
	case OwnerSite:
		return RootSite
	case OwnerUser:
		return RootUser
	case OwnerPost:
		return RootPost
	case OwnerTerm:
		return RootTerm
	case OwnerComment:
		return RootComment
	default:
		return ""
	}
}

// Global reports whether owners of this kind are shared by every tenant.
// User accounts are; their blocks live with the primary tenant.
func (k OwnerKind) Global() bool {
	return k == OwnerUser
}

func (k OwnerKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid owner kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *OwnerKind) UnmarshalText(text []byte) error {
	parsed, err := ParseOwnerKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseOwnerKind parses the textual form produced by String.
func ParseOwnerKind(s string) (OwnerKind, error) {
	for _, k := range OwnerKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown owner kind %q", s)
}

// OwnerRef says which entity owns a block. For site owners ID is the tenant
// id itself.
type OwnerRef struct {
	Kind OwnerKind `json:"kind"`
	ID   uint64    `json:"id"`
}

func (r OwnerRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// OwnerID identifies an owner within a tenant.
type OwnerID struct {
	Tenant tenant.ID
	Ref    OwnerRef
}

// SiteOwner returns the owner id of the tenant's own site-level blocks.
func SiteOwner(t tenant.ID) OwnerID {
	return OwnerID{Tenant: t, Ref: OwnerRef{Kind: OwnerSite, ID: uint64(t)}}
}

// UserOwner returns the owner id of a user. Users are global, so primary
// must be the deployment's primary tenant.
func UserOwner(primary tenant.ID, userID uint64) OwnerID {
	return OwnerID{Tenant: primary, Ref: OwnerRef{Kind: OwnerUser, ID: userID}}
}

func PostOwner(t tenant.ID, postID uint64) OwnerID {
	return OwnerID{Tenant: t, Ref: OwnerRef{Kind: OwnerPost, ID: postID}}
}

func TermOwner(t tenant.ID, termID uint64) OwnerID {
	return OwnerID{Tenant: t, Ref: OwnerRef{Kind: OwnerTerm, ID: termID}}
}

func CommentOwner(t tenant.ID, commentID uint64) OwnerID {
	return OwnerID{Tenant: t, Ref: OwnerRef{Kind: OwnerComment, ID: commentID}}
}

// NewOwnerID builds an owner id from a kind and value. Site owners ignore
// value and use the tenant.
func NewOwnerID(t tenant.ID, kind OwnerKind, value uint64) (OwnerID, error) {
	switch kind {
	case OwnerSite:
		return SiteOwner(t), nil
	case OwnerUser:
		return UserOwner(t, value), nil
	case OwnerPost:
		return PostOwner(t, value), nil
	case OwnerTerm:
		return TermOwner(t, value), nil
	case OwnerComment:
		return CommentOwner(t, value), nil
	default:
		return OwnerID{}, fmt.Errorf("unknown owner kind %d", int(kind))
	}
}

// RootType returns the root block type of this owner.
func (o OwnerID) RootType() string {
	return o.Ref.Kind.RootType()
}

// Query returns the query that selects exactly this owner's blocks.
func (o OwnerID) Query() Query {
	if o.Ref.Kind == OwnerSite {
		return ForSite(o.Tenant)
	}
	return Query{Tenant: o.Tenant, Kind: o.Ref.Kind, IDs: []uint64{o.Ref.ID}}
}

func (o OwnerID) String() string {
	return fmt.Sprintf("tenant %d %s", o.Tenant, o.Ref)
}
