package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ferret/pkg/maps"
)

// HandleLregions prints the regions a first scan would walk.
func (s *Session) HandleLregions() error {
	if err := s.requireTarget(); err != nil {
		return err
	}
	if len(s.regions) == 0 {
		s.Infof("no regions are known.")
		return nil
	}
	for _, r := range s.regions {
		name := r.Filename
		if name == "" {
			name = "unassociated"
		}
		fmt.Fprintf(s.out, "[%2d] %12x, %7d bytes, %5s, %12x, %s, %s\n",
			r.ID, r.Start, r.Size, r.Type, r.LoadAddr, r.Perms, name)
	}
	return nil
}

// HandleDregion drops regions by id — or, with a leading '!', drops
// everything except them — and clears the matches the dropped regions
// contained.
func (s *Session) HandleDregion(args []string) error {
	if len(args) != 1 {
		return errors.New("expected an argument, see `help dregion`")
	}
	if err := s.requireTarget(); err != nil {
		return err
	}

	arg := args[0]
	invert := strings.HasPrefix(arg, "!")
	if invert {
		arg = arg[1:]
		if arg == "" {
			return errors.New("inverting an empty set, maybe try `reset` instead?")
		}
	}

	wanted := map[int]bool{}
	for _, idstr := range strings.Split(arg, ",") {
		id, err := strconv.ParseUint(idstr, 0, 32)
		if err != nil || idstr == "" {
			return fmt.Errorf("could not parse argument %s", idstr)
		}
		if !s.regionKnown(int(id)) {
			return fmt.Errorf("no region matching %d, or already moved", id)
		}
		wanted[int(id)] = true
	}

	var kept []*maps.Region
	for _, r := range s.regions {
		drop := wanted[r.ID] != invert
		if drop {
			if s.matches != nil {
				s.num -= s.matches.DeleteInRange(r.Start, r.Size, false)
			}
			continue
		}
		kept = append(kept, r)
	}
	s.regions = kept
	return nil
}

func (s *Session) regionKnown(id int) bool {
	for _, r := range s.regions {
		if r.ID == id {
			return true
		}
	}
	return false
}
