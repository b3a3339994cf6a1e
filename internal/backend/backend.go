// Package backend opens the storage, records and pipeline selected by
// configuration. The server and the operator CLI share it.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/clock"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/log"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/metastore"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/scorm"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/storage"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

type Options struct {
	Logger   log.Logger
	Observer scorm.Observer
	Clock    clock.Clock

	// LoadAWS overrides the default credential chain. Tests leave it nil
	// and never select an AWS backend.
	LoadAWS func(ctx context.Context) (aws.Config, error)
}

type Backends struct {
	Storage  storage.Storage
	Records  metastore.Store
	Pipeline *scorm.Pipeline
}

// awsLoader loads the shared AWS config at most once.
type awsLoader struct {
	once sync.Once
	load func(ctx context.Context) (aws.Config, error)
	cfg  aws.Config
	err  error
}

func (a *awsLoader) get(ctx context.Context) (aws.Config, error) {
	a.once.Do(func() { a.cfg, a.err = a.load(ctx) })
	return a.cfg, a.err
}

func defaultLoadAWS(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

// Open builds every backend c selects. The caller closes the result.
func Open(ctx context.Context, c cfg.App, opts Options) (*Backends, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.LoadAWS == nil {
		opts.LoadAWS = defaultLoadAWS
	}
	L := opts.Logger
	aw := &awsLoader{load: opts.LoadAWS}

	store, err := openStorage(ctx, c, aw)
	if err != nil {
		return nil, err
	}
	records, err := openRecords(ctx, c, aw)
	if err != nil {
		return nil, err
	}

	p, err := scorm.New(scorm.Options{
		Logger:       L.With("component", "scorm"),
		Storage:      store,
		Records:      records,
		Clock:        opts.Clock,
		Observer:     opts.Observer,
		ScormRoot:    c.ScormRoot,
		PublicScheme: c.PublicScheme,
		PublicHost:   c.PublicHost,
		MediaURL:     c.MediaURL,
		EntryFile:    c.EntryFile,
	})
	if err != nil {
		_ = records.Close()
		return nil, err
	}

	L.Info(ctx, "backends ready",
		"storage_backend", c.StorageBackend,
		"metadata_backend", c.MetadataBackend,
		"scorm_root", p.Root(),
	)
	return &Backends{Storage: store, Records: records, Pipeline: p}, nil
}

func openStorage(ctx context.Context, c cfg.App, aw *awsLoader) (storage.Storage, error) {
	switch c.StorageBackend {
	case "fs":
		return storage.NewFileSystem(c.StorageRoot)
	case "s3":
		ac, err := aw.get(ctx)
		if err != nil {
			return nil, xerrors.Wrap(err, "load aws config")
		}
		return storage.NewS3FromClient(s3.NewFromConfig(ac), c.S3Bucket, c.S3Prefix, c.S3PresignTTL)
	}
	return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
}

func openRecords(ctx context.Context, c cfg.App, aw *awsLoader) (metastore.Store, error) {
	switch c.MetadataBackend {
	case "memory":
		return metastore.NewMemory(), nil
	case "leveldb":
		return metastore.OpenLevelDB(c.LevelDBPath)
	case "dynamodb":
		ac, err := aw.get(ctx)
		if err != nil {
			return nil, xerrors.Wrap(err, "load aws config")
		}
		return metastore.NewDynamoDB(dynamodb.NewFromConfig(ac), c.DynamoDBTable), nil
	}
	return nil, fmt.Errorf("unknown metadata backend %q", c.MetadataBackend)
}

// Check probes storage and records together.
func (b *Backends) Check(ctx context.Context) error {
	return errors.Join(
		xerrors.Wrap(b.Storage.Check(ctx), "storage"),
		xerrors.Wrap(b.Records.Check(ctx), "metadata"),
	)
}

func (b *Backends) Close() error {
	return b.Records.Close()
}
