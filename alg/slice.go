package alg

import (
	"fmt"

	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/model"
)

// Slice is the period a VM uses resources on a node. A consuming slice
// (c-slice) starts at 0 on the current host; a demanding slice (d-slice)
// ends at the horizon on the chosen host.
type Slice struct {
	subject  model.VMID
	start    *cp.IntVar
	end      *cp.IntVar
	duration *cp.IntVar
	hoster   *cp.IntVar
}

func (s *Slice) Subject() model.VMID  { return s.subject }
func (s *Slice) Start() *cp.IntVar    { return s.start }
func (s *Slice) End() *cp.IntVar      { return s.end }
func (s *Slice) Duration() *cp.IntVar { return s.duration }
func (s *Slice) Hoster() *cp.IntVar   { return s.hoster }

func (s *Slice) String() string {
	return fmt.Sprintf("slice(%s, %s, %s, %s)", s.subject, s.hoster, s.start, s.end)
}
