package game

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Idgen hands out room ids that are unique among the rooms currently
// alive in this process. Dispose returns an id to the pool once the
// room is gone.
type Idgen struct {
	ids    map[string]struct{}
	locker sync.Mutex
}

func NewIdGen() *Idgen {
	return &Idgen{ids: make(map[string]struct{})}
}

func (idgen *Idgen) Generate() string {
	idgen.locker.Lock()
	defer idgen.locker.Unlock()

	for {
		raw := strings.ReplaceAll(uuid.NewString(), "-", "")
		id := "room-" + raw[:12]
		if _, taken := idgen.ids[id]; taken {
			continue
		}
		idgen.ids[id] = struct{}{}
		return id
	}
}

func (idgen *Idgen) Dispose(id string) {
	idgen.locker.Lock()
	defer idgen.locker.Unlock()
	delete(idgen.ids, id)
}
