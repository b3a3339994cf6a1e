package metastore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/scorm"
)

var (
	scopeA = scorm.Scope{Org: "acme", Course: "c1", BlockType: "scorm", BlockID: "a"}
	scopeB = scorm.Scope{Org: "acme", Course: "c1", BlockType: "scorm", BlockID: "b"}
)

func sampleMeta() scorm.PackageMetadata {
	return scorm.PackageMetadata{
		DisplayName:      "Safety",
		ContentHash:      "a9993e364706816aba3e25717850c26c9cd0d89d",
		OriginalFileName: "course.zip",
		FileExtension:    ".zip",
		StoragePath:      "acme/c1/scorm/a/a9993e364706816aba3e25717850c26c9cd0d89d.zip",
		EntryPath:        "/srv/scorm/a/index.html",
		LastUpdated:      time.Date(2026, 2, 3, 4, 5, 6, 789000000, time.UTC),
		PublicBaseURL:    "//lms.example.com/media/scorm/a",
	}
}

// exercise runs the shared contract against any Store.
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, scopeA); !errors.Is(err, scorm.ErrNotFound) {
		t.Fatalf("Get before Put err = %v, want ErrNotFound", err)
	}

	want := sampleMeta()
	if err := s.Put(ctx, scopeA, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, scopeB, scorm.PackageMetadata{DisplayName: "only a name"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, scopeA)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.LastUpdated.Equal(want.LastUpdated) {
		t.Fatalf("LastUpdated = %v, want %v", got.LastUpdated, want.LastUpdated)
	}
	got.LastUpdated = want.LastUpdated
	if got != want {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Scope != scopeA || entries[1].Scope != scopeB {
		t.Fatalf("List = %+v", entries)
	}
	if entries[1].Metadata.Ingested() {
		t.Fatal("name-only record should not count as ingested")
	}

	if err := s.Delete(ctx, scopeA); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, scopeA); !errors.Is(err, scorm.ErrNotFound) {
		t.Fatalf("Get after Delete err = %v", err)
	}
	if err := s.Delete(ctx, scopeA); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if err := s.Check(ctx); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestLevelDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta")
	db, err := OpenLevelDB(path)
	if err != nil {
		t.Fatalf("OpenLevelDB: %v", err)
	}
	exercise(t, db)

	// records survive a reopen
	ctx := context.Background()
	if err := db.Put(ctx, scopeA, sampleMeta()); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	db, err = OpenLevelDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	got, err := db.Get(ctx, scopeA)
	if err != nil || got.ContentHash != sampleMeta().ContentHash {
		t.Fatalf("after reopen Get = %+v, %v", got, err)
	}
}

func TestCodec_PreservesTime(t *testing.T) {
	m := sampleMeta()
	b, err := encode(m)
	if err != nil {
		t.Fatal(err)
	}
	again, err := encode(m)
	if err != nil || string(again) != string(b) {
		t.Fatal("encoding is not deterministic")
	}
	got, err := decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastUpdated.Equal(m.LastUpdated) || got.LastUpdated.Nanosecond() != 789000000 {
		t.Fatalf("LastUpdated = %v", got.LastUpdated)
	}
}

// fakeDynamo keeps items in a map keyed by the "scope" attribute and pages
// scans one item at a time.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	table string
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}, table: "scorm-packages"}
}

func scopeOf(key map[string]types.AttributeValue) string {
	if s, ok := key["scope"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[scopeOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[scopeOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, scopeOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.items {
		keys = append(keys, k)
	}
	// deterministic paging order
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	after := scopeOf(in.ExclusiveStartKey)
	for _, k := range keys {
		if after != "" && k <= after {
			continue
		}
		out := &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{f.items[k]}}
		if k != keys[len(keys)-1] {
			out.LastEvaluatedKey = map[string]types.AttributeValue{"scope": &types.AttributeValueMemberS{Value: k}}
		}
		return out, nil
	}
	return &dynamodb.ScanOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if aws.ToString(in.TableName) != f.table {
		return nil, &types.ResourceNotFoundException{}
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func TestDynamoDB(t *testing.T) {
	fake := newFakeDynamo()
	exercise(t, NewDynamoDB(fake, fake.table))

	if err := NewDynamoDB(fake, "other").Check(context.Background()); err == nil {
		t.Fatal("Check should fail for a missing table")
	}
}

func TestDynamoDB_ItemShape(t *testing.T) {
	fake := newFakeDynamo()
	d := NewDynamoDB(fake, fake.table)
	if err := d.Put(context.Background(), scopeA, sampleMeta()); err != nil {
		t.Fatal(err)
	}
	item := fake.items[scopeA.Key()]
	if _, ok := item["content_hash"].(*types.AttributeValueMemberS); !ok {
		t.Fatalf("content_hash attribute missing, item = %v", item)
	}
	if _, ok := item["last_updated"].(*types.AttributeValueMemberS); !ok {
		t.Fatalf("last_updated should be a string attribute, item = %v", item)
	}
}
