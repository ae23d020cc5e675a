package domain

import (
	"slices"

	"awful/internal/tenant"
)

// Query selects the blocks of one or more owners of the same kind within a
// tenant. The zero-length query is legal to build but storage refuses to run
// it.
type Query struct {
	Tenant tenant.ID
	Kind   OwnerKind
	IDs    []uint64
}

// ForSite selects a tenant's site-level blocks. Its only id is the tenant.
func ForSite(t tenant.ID) Query {
	return Query{Tenant: t, Kind: OwnerSite, IDs: []uint64{uint64(t)}}
}

func ForUsers(primary tenant.ID, ids ...uint64) Query {
	return Query{Tenant: primary, Kind: OwnerUser, IDs: dedupe(ids)}
}

func ForPosts(t tenant.ID, ids ...uint64) Query {
	return Query{Tenant: t, Kind: OwnerPost, IDs: dedupe(ids)}
}

func ForTerms(t tenant.ID, ids ...uint64) Query {
	return Query{Tenant: t, Kind: OwnerTerm, IDs: dedupe(ids)}
}

func ForComments(t tenant.ID, ids ...uint64) Query {
	return Query{Tenant: t, Kind: OwnerComment, IDs: dedupe(ids)}
}

// WholeTenant reports whether q is the site query, which is fetched and
// cached as a single unit.
func (q Query) WholeTenant() bool {
	return q.Kind == OwnerSite
}

// Empty reports whether q selects nothing.
func (q Query) Empty() bool {
	return len(q.IDs) == 0
}

// Without returns a copy of q with the given ids removed.
func (q Query) Without(exclude ...uint64) Query {
	out := Query{Tenant: q.Tenant, Kind: q.Kind}
	for _, id := range q.IDs {
		if !slices.Contains(exclude, id) {
			out.IDs = append(out.IDs, id)
		}
	}
	return out
}

// Owner returns the owner id for one of the query's ids.
func (q Query) Owner(id uint64) OwnerID {
	if q.Kind == OwnerSite {
		return SiteOwner(q.Tenant)
	}
	return OwnerID{Tenant: q.Tenant, Ref: OwnerRef{Kind: q.Kind, ID: id}}
}

func dedupe(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
