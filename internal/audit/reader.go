package audit

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/starquake/horizon/internal/events"
	"github.com/starquake/horizon/internal/objectstore"
)

// ListObjects returns the archived batches of archiveID, oldest first.
func ListObjects(ctx context.Context, store objectstore.Store, prefix, archiveID string) ([]objectstore.ObjectMeta, error) {
	objs, err := store.List(ctx, ArchivePrefix(prefix, archiveID))
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return objs, nil
}

// ReadObject decodes one archived batch. The encoding is taken from the
// key's extension.
func ReadObject(ctx context.Context, store objectstore.Store, key string) ([]events.Event, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("audit: read %s: %w", key, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("audit: read %s: %w", key, err)
	}
	return Decode(path.Base(key), data)
}

// Decode parses an archived batch named name.
func Decode(name string, data []byte) ([]events.Event, error) {
	if strings.HasSuffix(name, ".parquet") {
		return decodeParquet(data)
	}

	idx := strings.Index(name, ".jsonl")
	if idx < 0 {
		return nil, fmt.Errorf("audit: unrecognised object %q", name)
	}
	codec, ok := codecFromExtension(name[idx+len(".jsonl"):])
	if !ok {
		return nil, fmt.Errorf("audit: unrecognised compression in %q", name)
	}
	raw, err := decompress(codec, data)
	if err != nil {
		return nil, fmt.Errorf("audit: decompress %s: %w", name, err)
	}

	var out []events.Event
	for _, line := range strings.Split(string(raw), "\n") {
		if line == "" {
			continue
		}
		e, err := events.Unmarshal([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("audit: decode %s: %w", name, err)
		}
		out = append(out, e)
	}
	return out, nil
}
