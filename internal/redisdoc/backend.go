package redisdoc

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/stockroom/internal/codec"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

var (
	_ types.Persistence = (*Backend)(nil)
	_ types.ChangeSink  = (*Backend)(nil)
	_ types.Closer      = (*Backend)(nil)
)

// LoadSchema returns the characteristics sorted by name.
func (b *Backend) LoadSchema(ctx context.Context) ([]types.Characteristic, error) {
	out, err := loadHash(ctx, b, characteristicsKey,
		func(d codec.CharacteristicDoc) (types.Characteristic, error) { return d.Characteristic() })
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, c types.Characteristic) int { return strings.Compare(a.Name, c.Name) })
	return out, nil
}

// LoadGroups returns the groups sorted by name.
func (b *Backend) LoadGroups(ctx context.Context) ([]types.Group, error) {
	out, err := loadHash(ctx, b, groupsKey,
		func(d codec.GroupDoc) (types.Group, error) { return d.Group() })
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, c types.Group) int { return strings.Compare(a.Name, c.Name) })
	return out, nil
}

// LoadRecords returns the records ordered by creation time, then id.
func (b *Backend) LoadRecords(ctx context.Context) ([]types.Record, error) {
	out, err := loadHash(ctx, b, recordsKey,
		func(d codec.RecordDoc) (types.Record, error) { return d.Record() })
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, c types.Record) int {
		return cmp.Or(a.CreatedAt.Compare(c.CreatedAt), strings.Compare(a.ID, c.ID))
	})
	return out, nil
}

// LoadChanges returns the change log in append order.
func (b *Backend) LoadChanges(ctx context.Context) ([]types.Change, error) {
	cmd := b.client.B().Lrange().Key(b.key(changesKey)).Start(0).Stop(-1).Build()
	raws, err := b.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &Error{Op: OpLRange, Key: b.key(changesKey), Err: err}
	}
	out := make([]types.Change, 0, len(raws))
	for _, raw := range raws {
		var d codec.ChangeDoc
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("decoding change: %w", err)
		}
		c, err := d.Change()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveSchema inserts or replaces a characteristic.
func (b *Backend) SaveSchema(ctx context.Context, c types.Characteristic) error {
	return b.hset(ctx, characteristicsKey, c.Name, codec.EncodeCharacteristic(c))
}

// SaveGroup inserts or replaces a group.
func (b *Backend) SaveGroup(ctx context.Context, g types.Group) error {
	return b.hset(ctx, groupsKey, g.Name, codec.EncodeGroup(g))
}

// SaveRecord inserts or replaces a record.
func (b *Backend) SaveRecord(ctx context.Context, r types.Record) error {
	return b.hset(ctx, recordsKey, r.ID, codec.EncodeRecord(r))
}

// DeleteSchema removes a characteristic.
func (b *Backend) DeleteSchema(ctx context.Context, name string) error {
	return b.hdel(ctx, characteristicsKey, name)
}

// DeleteGroup removes a group.
func (b *Backend) DeleteGroup(ctx context.Context, name string) error {
	return b.hdel(ctx, groupsKey, name)
}

// DeleteRecord removes a record.
func (b *Backend) DeleteRecord(ctx context.Context, id string) error {
	return b.hdel(ctx, recordsKey, id)
}

// AppendChange appends c to the change log.
func (b *Backend) AppendChange(ctx context.Context, c types.Change) error {
	data, err := json.Marshal(codec.EncodeChange(c))
	if err != nil {
		return fmt.Errorf("encoding change %d: %w", c.Seq, err)
	}
	cmd := b.client.B().Rpush().Key(b.key(changesKey)).Element(string(data)).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return &Error{Op: OpRPush, Key: b.key(changesKey), Err: err}
	}
	return nil
}

func (b *Backend) hset(ctx context.Context, suffix, field string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", field, err)
	}
	key := b.key(suffix)
	cmd := b.client.B().Hset().Key(key).FieldValue().FieldValue(field, string(data)).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return &Error{Op: OpHSet, Key: key, Err: err}
	}
	return nil
}

func (b *Backend) hdel(ctx context.Context, suffix, field string) error {
	key := b.key(suffix)
	cmd := b.client.B().Hdel().Key(key).Field(field).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return &Error{Op: OpHDel, Key: key, Err: err}
	}
	return nil
}

// loadHash reads every document of one hash and hydrates it.
func loadHash[D, T any](ctx context.Context, b *Backend, suffix string, hydrate func(D) (T, error)) ([]T, error) {
	key := b.key(suffix)
	cmd := b.client.B().Hgetall().Key(key).Build()
	m, err := b.client.Do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &Error{Op: OpHGetAll, Key: key, Err: err}
	}
	out := make([]T, 0, len(m))
	for field, raw := range m {
		var d D
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("decoding %s %s: %w", key, field, err)
		}
		v, err := hydrate(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
