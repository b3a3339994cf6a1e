package metastore

import (
	"context"
	"errors"
	"sort"
	"strings"

	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	dslvl "github.com/ipfs/go-ds-leveldb"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/scorm"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

const leveldbPrefix = "/packages"

// LevelDB keeps CBOR encoded records in an embedded datastore at a local
// path.
type LevelDB struct {
	db *dslvl.Datastore
}

func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := dslvl.NewDatastore(path, nil)
	if err != nil {
		return nil, xerrors.Wrapf(err, "open leveldb at %s", path)
	}
	return &LevelDB{db: db}, nil
}

func leveldbKey(s scorm.Scope) ds.Key {
	return ds.NewKey(leveldbPrefix).ChildString(s.Key())
}

func (l *LevelDB) Get(ctx context.Context, s scorm.Scope) (scorm.PackageMetadata, error) {
	b, err := l.db.Get(ctx, leveldbKey(s))
	if errors.Is(err, ds.ErrNotFound) {
		return scorm.PackageMetadata{}, notFound(s)
	}
	if err != nil {
		return scorm.PackageMetadata{}, xerrors.Wrapf(err, "get %s", s)
	}
	return decode(b)
}

func (l *LevelDB) Put(ctx context.Context, s scorm.Scope, meta scorm.PackageMetadata) error {
	b, err := encode(meta)
	if err != nil {
		return err
	}
	if err := l.db.Put(ctx, leveldbKey(s), b); err != nil {
		return xerrors.Wrapf(err, "put %s", s)
	}
	return nil
}

func (l *LevelDB) Delete(ctx context.Context, s scorm.Scope) error {
	if err := l.db.Delete(ctx, leveldbKey(s)); err != nil && !errors.Is(err, ds.ErrNotFound) {
		return xerrors.Wrapf(err, "delete %s", s)
	}
	return nil
}

func (l *LevelDB) List(ctx context.Context) ([]Entry, error) {
	res, err := l.db.Query(ctx, dsq.Query{Prefix: leveldbPrefix})
	if err != nil {
		return nil, xerrors.Wrap(err, "query records")
	}
	defer res.Close()

	var out []Entry
	for r := range res.Next() {
		if r.Error != nil {
			return nil, xerrors.Wrap(r.Error, "iterate records")
		}
		s, err := scorm.ParseScope(strings.TrimPrefix(r.Key, leveldbPrefix))
		if err != nil {
			return nil, err
		}
		meta, err := decode(r.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Scope: s, Metadata: meta})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope.Key() < out[j].Scope.Key() })
	return out, nil
}

func (l *LevelDB) Check(ctx context.Context) error {
	_, err := l.db.Has(ctx, ds.NewKey(leveldbPrefix))
	return err
}

func (l *LevelDB) Close() error { return l.db.Close() }
