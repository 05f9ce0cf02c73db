package counters

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// File layout. All offsets are 8-byte aligned so state and value words can
// be accessed atomically through the shared mapping.
//
//	header   [0, HeaderLength)
//	metadata capacity * MetadataRecordLength
//	values   capacity * ValueRecordLength
const (
	HeaderLength         = 64
	MetadataRecordLength = 256
	ValueRecordLength    = 64

	// MaxLabelLength is the longest label a slot can hold.
	MaxLabelLength = MetadataRecordLength - labelOffset

	fileMagic   uint32 = 0x485a4352 // "HZCR"
	fileVersion int32  = 1

	magicOffset     = 0
	versionOffset   = 4
	capacityOffset  = 8
	highWaterOffset = 12

	stateOffset       = 0
	typeIDOffset      = 4
	labelLengthOffset = 8
	labelOffset       = 12
)

// ErrBadRegistryFile is returned when a file does not carry a valid header.
var ErrBadRegistryFile = errors.New("counters: not a counters file")

// FileRegistry is a Registry backed by a memory-mapped file shared between
// the archive process (writer) and readers such as the retention controller.
type FileRegistry struct {
	mu       sync.Mutex
	data     []byte
	capacity int32
	writable bool
}

// CreateFile creates (or truncates) a counters file with room for capacity
// slots and maps it read-write.
func CreateFile(path string, capacity int) (*FileRegistry, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("counters: invalid capacity %d", capacity)
	}
	size := fileSize(int32(capacity))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("counters: create %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("counters: size %s: %w", path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("counters: mmap %s: %w", path, err)
	}

	binary.LittleEndian.PutUint32(data[magicOffset:], fileMagic)
	binary.LittleEndian.PutUint32(data[versionOffset:], uint32(fileVersion))
	binary.LittleEndian.PutUint32(data[capacityOffset:], uint32(capacity))

	return &FileRegistry{data: data, capacity: int32(capacity), writable: true}, nil
}

// OpenFile maps an existing counters file read-only.
func OpenFile(path string) (*FileRegistry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("counters: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("counters: stat %s: %w", path, err)
	}
	if info.Size() < HeaderLength {
		return nil, ErrBadRegistryFile
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("counters: mmap %s: %w", path, err)
	}

	if binary.LittleEndian.Uint32(data[magicOffset:]) != fileMagic ||
		int32(binary.LittleEndian.Uint32(data[versionOffset:])) != fileVersion {
		_ = unix.Munmap(data)
		return nil, ErrBadRegistryFile
	}
	capacity := int32(binary.LittleEndian.Uint32(data[capacityOffset:]))
	if capacity <= 0 || fileSize(capacity) > len(data) {
		_ = unix.Munmap(data)
		return nil, ErrBadRegistryFile
	}

	return &FileRegistry{data: data, capacity: capacity}, nil
}

// Close unmaps the file.
func (r *FileRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}

// Capacity returns the number of slots in the file.
func (r *FileRegistry) Capacity() int {
	return int(r.capacity)
}

func (r *FileRegistry) MaxCounterID() int32 {
	return r.highWater() - 1
}

// highWater reads the shared high-water mark clamped to [0, capacity]; the
// word comes from a file another process writes.
func (r *FileRegistry) highWater() int32 {
	hw := atomic.LoadInt32(r.int32At(highWaterOffset))
	return min(max(hw, 0), r.capacity)
}

func (r *FileRegistry) CounterState(id int32) int32 {
	if !r.inRange(id) {
		return RecordUnused
	}
	return atomic.LoadInt32(r.int32At(metadataOffset(id) + stateOffset))
}

func (r *FileRegistry) CounterTypeID(id int32) int32 {
	if !r.inRange(id) {
		return 0
	}
	return atomic.LoadInt32(r.int32At(metadataOffset(id) + typeIDOffset))
}

func (r *FileRegistry) CounterLabel(id int32) string {
	if !r.inRange(id) {
		return ""
	}
	base := metadataOffset(id)
	n := int(atomic.LoadInt32(r.int32At(base + labelLengthOffset)))
	if n < 0 || n > MaxLabelLength {
		return ""
	}
	start := base + labelOffset
	return string(r.data[start : start+n])
}

func (r *FileRegistry) CounterValue(id int32) int64 {
	if !r.inRange(id) {
		return 0
	}
	return atomic.LoadInt64(r.int64At(r.valueOffset(id)))
}

// Allocate claims the lowest free slot. The state word is published last so
// readers never observe a half-written slot as allocated.
func (r *FileRegistry) Allocate(typeID int32, label string) (int32, error) {
	if !r.writable {
		return -1, ErrReadOnly
	}
	if len(label) > MaxLabelLength {
		return -1, ErrLabelTooLong
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	highWater := r.highWater()
	id := int32(-1)
	for i := int32(0); i < highWater; i++ {
		if r.CounterState(i) != RecordAllocated {
			id = i
			break
		}
	}
	if id < 0 {
		if highWater >= r.capacity {
			return -1, ErrRegistryFull
		}
		id = highWater
	}

	base := metadataOffset(id)
	atomic.StoreInt32(r.int32At(base+typeIDOffset), typeID)
	copy(r.data[base+labelOffset:base+MetadataRecordLength], label)
	atomic.StoreInt32(r.int32At(base+labelLengthOffset), int32(len(label)))
	atomic.StoreInt64(r.int64At(r.valueOffset(id)), 0)
	atomic.StoreInt32(r.int32At(base+stateOffset), RecordAllocated)

	if id == highWater {
		atomic.StoreInt32(r.int32At(highWaterOffset), highWater+1)
	}
	return id, nil
}

func (r *FileRegistry) SetValue(id int32, value int64) {
	if !r.writable || !r.inRange(id) {
		return
	}
	atomic.StoreInt64(r.int64At(r.valueOffset(id)), value)
}

func (r *FileRegistry) Free(id int32) {
	if !r.writable || !r.inRange(id) {
		return
	}
	atomic.StoreInt32(r.int32At(metadataOffset(id)+stateOffset), RecordReclaimed)
}

func (r *FileRegistry) inRange(id int32) bool {
	return id >= 0 && id < r.capacity
}

func (r *FileRegistry) valueOffset(id int32) int {
	return HeaderLength + int(r.capacity)*MetadataRecordLength + int(id)*ValueRecordLength
}

func (r *FileRegistry) int32At(off int) *int32 {
	return (*int32)(unsafe.Pointer(&r.data[off]))
}

func (r *FileRegistry) int64At(off int) *int64 {
	return (*int64)(unsafe.Pointer(&r.data[off]))
}

func metadataOffset(id int32) int {
	return HeaderLength + int(id)*MetadataRecordLength
}

func fileSize(capacity int32) int {
	return HeaderLength + int(capacity)*(MetadataRecordLength+ValueRecordLength)
}
