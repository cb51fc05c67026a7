package corpus

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"legal-rag-go/pkg/log"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 2 * time.Second

// Watcher 监听索引文件所在目录，文件被替换后重新加载并替换 Holder 中的快照。
// 新文件加载失败时保留旧快照。
type Watcher struct {
	holder       *Holder
	indexPath    string
	metadataPath string
	expectedDim  int
	debounce     time.Duration
	loader       func(indexPath, metadataPath string, expectedDim int) (*Corpus, error)
}

// NewWatcher 创建 Watcher。
func NewWatcher(holder *Holder, indexPath, metadataPath string, expectedDim int) *Watcher {
	return &Watcher{
		holder:       holder,
		indexPath:    indexPath,
		metadataPath: metadataPath,
		expectedDim:  expectedDim,
		debounce:     defaultDebounce,
		loader:       Load,
	}
}

// Run 阻塞运行直到 ctx 结束。
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	dirs := map[string]struct{}{
		filepath.Dir(w.indexPath):    {},
		filepath.Dir(w.metadataPath): {},
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	log.Infof("[Watcher] 开始监听索引文件: %s, %s", w.indexPath, w.metadataPath)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warnf("[Watcher] fsnotify 错误: %v", err)
		case <-fire:
			fire = nil
			w.Reload()
		}
	}
}

// Reload 立即尝试重新加载索引，成功则替换快照。
func (w *Watcher) Reload() bool {
	next, err := w.loader(w.indexPath, w.metadataPath, w.expectedDim)
	if err != nil {
		log.Warnf("[Watcher] 重新加载索引失败，继续使用旧快照: %v", err)
		return false
	}
	w.holder.Swap(next)
	log.Infof("[Watcher] 索引已热加载, 向量数: %d, 维度: %d", next.Len(), next.Dim())
	return true
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	return name == filepath.Clean(w.indexPath) || name == filepath.Clean(w.metadataPath)
}
