package blocks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"awful/internal/domain"
	"awful/internal/field"
	"awful/internal/metrics"
)

// FormErrors is the reserved key for errors that belong to no single field
// (under a block uuid) or to no single block (at the top level).
const FormErrors = "$errors"

// Incoming is one submitted block.
type Incoming struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Errors maps block uuid to field name to messages. Every visited block has
// an entry, possibly empty.
type Errors map[string]map[string][]string

func (e Errors) add(uuid, name string, msgs ...string) {
	bucket, ok := e[uuid]
	if !ok {
		bucket = make(map[string][]string)
		e[uuid] = bucket
	}
	bucket[name] = append(bucket[name], msgs...)
}

// Has reports whether any message was recorded.
func (e Errors) Has() bool {
	for _, bucket := range e {
		for _, msgs := range bucket {
			if len(msgs) > 0 {
				return true
			}
		}
	}
	return false
}

func (e Errors) visited(uuid string) bool {
	_, ok := e[uuid]
	return ok
}

// Form validates a submitted block tree against an owner's blocks and
// saves it only if every reachable block is valid.
type Form struct {
	owner    *Owner
	incoming map[string]Incoming
	allowed  []string
}

// NewForm prepares a submission. allowed lists the root fields the caller
// may change; nil allows every field of the root model.
func NewForm(owner *Owner, incoming map[string]Incoming, allowed []string) *Form {
	return &Form{owner: owner, incoming: incoming, allowed: allowed}
}

// SaveIfValid validates the submission and, when it is valid, replaces the
// owner's blocks with the ones reachable from the submitted root. It
// returns nil Errors on success. A non-nil error means the save could not
// be attempted or failed in storage.
func (f *Form) SaveIfValid(ctx context.Context) (Errors, error) {
	errs, err := f.saveIfValid(ctx)
	m := f.owner.manager.metrics
	switch {
	case err != nil:
		m.IncFormSubmissions(metrics.OutcomeFailed)
	case errs != nil:
		m.IncFormSubmissions(metrics.OutcomeRejected)
	default:
		m.IncFormSubmissions(metrics.OutcomeSaved)
	}
	return errs, err
}

func (f *Form) saveIfValid(ctx context.Context) (Errors, error) {
	current, err := f.owner.Blocks(ctx)
	if err != nil {
		return nil, err
	}
	original := current.Clone()
	originalRoot, hasRoot := original.findRoot()

	rootType := f.owner.id.RootType()
	rootUUID, err := f.incomingRoot(rootType)
	if err != nil {
		return Errors{FormErrors: {FormErrors: {err.Error()}}}, nil
	}

	rootModel, err := f.owner.Model()
	if err != nil {
		return nil, err
	}
	var base map[string]any
	if hasRoot {
		base = originalRoot.Data
	}
	rootData := mergeRootData(base, f.incoming[rootUUID].Data, rootModel.Fields(), f.allowed)

	intermediate := original.Clone()
	for _, id := range sortedKeys(f.incoming) {
		in := f.incoming[id]
		data := domain.CloneData(in.Data)
		if id == rootUUID {
			data = rootData
		}
		if b, ok := intermediate.blocks[id]; ok {
			b.Type = in.Type
			b.Data = data
			continue
		}
		if _, err := intermediate.Create(in.Type, data, id); err != nil {
			return nil, err
		}
	}

	v := &validator{
		original: original,
		scratch:  f.owner.bind(intermediate),
		set:      intermediate,
		errs:     Errors{FormErrors: {}},
	}
	if err := v.clean(ctx, rootUUID); err != nil {
		return nil, err
	}
	if v.errs.Has() {
		return v.errs, nil
	}

	visited := make(map[string]bool, len(v.errs))
	for id := range v.errs {
		if id != FormErrors {
			visited[id] = true
		}
	}
	// A new uuid must not already belong to another owner.
	var fresh []string
	for id := range visited {
		if _, ok := original.Get(id); !ok {
			fresh = append(fresh, id)
		}
	}
	sort.Strings(fresh)
	taken, err := f.owner.manager.TakenUUIDs(ctx, f.owner.id.Tenant, fresh)
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		for _, id := range taken {
			v.errs.add(id, FormErrors, fmt.Sprintf("block uuid %s is already in use", id))
		}
		return v.errs, nil
	}

	cleaned := intermediate.subset(visited)

	var orphans []string
	for _, id := range original.UUIDs() {
		if !visited[id] {
			orphans = append(orphans, id)
		}
	}

	if err := f.owner.manager.Replace(ctx, cleaned, orphans); err != nil {
		return nil, err
	}
	f.owner.manager.logger.Debug().
		Str("owner", f.owner.id.String()).
		Int("saved", cleaned.Len()).
		Int("deleted", len(orphans)).
		Msg("form saved")
	return nil, f.owner.Reload(ctx)
}

// incomingRoot finds the one submitted block of the owner's root type.
func (f *Form) incomingRoot(rootType string) (string, error) {
	if _, ok := f.incoming[""]; ok {
		return "", errors.New("block without uuid")
	}
	var found []string
	for _, id := range sortedKeys(f.incoming) {
		if f.incoming[id].Type == rootType {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", errors.New("missing root block")
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("more than one root block: %v", found)
	}
}

// mergeRootData overlays the permitted submitted fields on the stored root
// data. Fields the caller did not send keep their stored value.
func mergeRootData(stored, submitted map[string]any, fields *field.Set, allowed []string) map[string]any {
	out := domain.CloneData(stored)
	for name, value := range submitted {
		if !fields.Has(name) {
			continue
		}
		if allowed != nil && !slices.Contains(allowed, name) {
			continue
		}
		out[name] = value
	}
	return out
}

func sortedKeys(m map[string]Incoming) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// validator walks the block graph from the root. errs doubles as the
// visited set.
type validator struct {
	original *Set
	scratch  *Owner
	set      *Set
	errs     Errors
}

func (v *validator) sameModel(a, b string) bool {
	ma, err := v.set.types.ModelForType(a)
	if err != nil {
		return false
	}
	mb, err := v.set.types.ModelForType(b)
	if err != nil {
		return false
	}
	return ma.Name() == mb.Name()
}

func (v *validator) clean(ctx context.Context, id string) error {
	if v.errs.visited(id) {
		v.errs.add(FormErrors, FormErrors, fmt.Sprintf("circular reference to block %s", id))
		return nil
	}
	v.errs[id] = make(map[string][]string)

	b := v.set.blocks[id]
	if prev, ok := v.original.Get(id); ok && prev.Type != b.Type {
		if !v.sameModel(prev.Type, b.Type) {
			v.errs.add(id, FormErrors, fmt.Sprintf("block type cannot change from %q to %q", prev.Type, b.Type))
			return nil
		}
		// an alias of the stored type; storage keeps the stored one
		b.Type = prev.Type
	}
	model, err := v.set.types.ModelForType(b.Type)
	if err != nil {
		var unknown *domain.UnknownTypeError
		if errors.As(err, &unknown) {
			v.errs.add(id, FormErrors, unknown.Error())
			return nil
		}
		return err
	}

	fields := model.Fields()
	cleaned := make(map[string]any, fields.Len())
	for _, name := range fields.Names() {
		f, _ := fields.Get(name)
		value, err := f.Clean(b.Data[name])
		if err != nil {
			var invalid *field.ValidationError
			if !errors.As(err, &invalid) {
				return fmt.Errorf("clean %s.%s: %w", id, name, err)
			}
			v.errs.add(id, name, invalid.Messages...)
			continue
		}
		cleaned[name] = value
	}
	b.Data = cleaned

	for _, name := range fields.Names() {
		f, _ := fields.Get(name)
		ref, ok := f.(field.Referencer)
		if !ok {
			continue
		}
		for _, child := range ref.References(cleaned[name]) {
			cb, ok := v.set.blocks[child]
			if !ok {
				v.errs.add(id, name, fmt.Sprintf("block %s does not exist", child))
				continue
			}
			if !ref.Accepts(cb.Type) {
				v.errs.add(id, name, fmt.Sprintf("block type %q is not allowed here", cb.Type))
				continue
			}
			if err := v.clean(ctx, child); err != nil {
				return err
			}
		}
	}

	if len(v.errs[id]) > 0 {
		return nil
	}
	set, err := v.scratch.Blocks(ctx)
	if err != nil {
		return err
	}
	inst, err := set.Instance(id)
	if err != nil {
		return err
	}
	if err := model.Validate(ctx, inst); err != nil {
		var invalid *field.ValidationError
		if !errors.As(err, &invalid) {
			return fmt.Errorf("validate %s: %w", id, err)
		}
		v.errs.add(id, FormErrors, invalid.Messages...)
	}
	return nil
}
