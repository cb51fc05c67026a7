package vectorindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// 文件布局（小端）：
//
//	magic "LRVX" | version u16 | reserved u16 | dim u32 | count u64 | count*dim float32
const (
	fileMagic   = "LRVX"
	fileVersion = uint16(1)
	headerSize  = 4 + 2 + 2 + 4 + 8
)

// Save 将索引写入 path：先写同目录临时文件，再原子 rename 覆盖旧文件。
func (f *Flat) Save(path string) error {
	tmpName, err := f.WriteTemp(path)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// WriteTemp 把索引写入 path 同目录下的临时文件并返回其路径，由调用方负责 rename 或删除。
func (f *Flat) WriteTemp(path string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp index file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("sync temp index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp index file: %w", err)
	}
	return tmpName, nil
}

// WriteTo 以二进制布局序列化索引。
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	header := make([]byte, headerSize)
	copy(header[0:4], fileMagic)
	binary.LittleEndian.PutUint16(header[4:6], fileVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(f.dim))
	binary.LittleEndian.PutUint64(header[12:20], uint64(f.Len()))
	if _, err := bw.Write(header); err != nil {
		return 0, fmt.Errorf("write index header: %w", err)
	}

	buf := make([]byte, 4)
	for _, v := range f.data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := bw.Write(buf); err != nil {
			return 0, fmt.Errorf("write index vectors: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("flush index: %w", err)
	}
	return int64(headerSize + 4*len(f.data)), nil
}

// Load 从 path 反序列化索引。
func Load(path string) (*Flat, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat index file: %w", err)
	}
	return Read(bufio.NewReader(file), info.Size())
}

// Read 从 r 读取索引；size 为数据总字节数，用于校验文件完整性（<0 表示不校验）。
func Read(r io.Reader, size int64) (*Flat, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read index header: %v: %w", err, ErrCorrupt)
	}
	if string(header[0:4]) != fileMagic {
		return nil, fmt.Errorf("bad magic %q: %w", header[0:4], ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != fileVersion {
		return nil, fmt.Errorf("unsupported version %d: %w", v, ErrCorrupt)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:12]))
	count := binary.LittleEndian.Uint64(header[12:20])
	if dim <= 0 {
		return nil, fmt.Errorf("dimension %d: %w", dim, ErrCorrupt)
	}
	// 先按上限校验 count，避免 count*dim 溢出
	maxCount := uint64(math.MaxInt32) / 4 / uint64(dim)
	if size >= 0 {
		if size < headerSize {
			return nil, fmt.Errorf("size %d smaller than header: %w", size, ErrCorrupt)
		}
		maxCount = uint64(size-headerSize) / 4 / uint64(dim)
	}
	if count > maxCount {
		return nil, fmt.Errorf("count %d exceeds %d vectors of dimension %d: %w", count, maxCount, dim, ErrCorrupt)
	}
	total := count * uint64(dim)
	if size >= 0 && uint64(size) != uint64(headerSize)+4*total {
		return nil, fmt.Errorf("size %d does not match %d vectors of dimension %d: %w", size, count, dim, ErrCorrupt)
	}

	idx := &Flat{dim: dim, data: make([]float32, total)}
	buf := make([]byte, 4)
	for i := range idx.data {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector data: %v: %w", err, ErrCorrupt)
		}
		idx.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
	}
	return idx, nil
}
