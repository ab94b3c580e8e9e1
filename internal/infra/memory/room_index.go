package memory

import "sync"

// RoomIndex is the in-process implementation of the room liveness index,
// used when no Redis is configured. It only powers ops visibility (counts in
// logs and health output); room state itself lives in the managers.
type RoomIndex struct {
	mu    sync.RWMutex
	codes map[string]map[string]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{codes: make(map[string]map[string]struct{})}
}

func (i *RoomIndex) MarkLive(kind, code string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.codes[kind] == nil {
		i.codes[kind] = make(map[string]struct{})
	}
	i.codes[kind][code] = struct{}{}
}

func (i *RoomIndex) Drop(kind, code string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.codes[kind], code)
}

// Count reports the number of live codes of one kind.
func (i *RoomIndex) Count(kind string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.codes[kind])
}
