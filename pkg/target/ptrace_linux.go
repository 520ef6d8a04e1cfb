package target

import (
	"fmt"

	"golang.org/x/sys/unix"

	"ferret/pkg/maps"
)

// LinuxProcess drives a live process through ptrace attach/detach and
// process_vm_readv / process_vm_writev transfers.
type LinuxProcess struct {
	pid      int
	attached bool
}

// New returns target I/O for pid. No syscall is made until Attach.
func New(pid int) *LinuxProcess {
	return &LinuxProcess{pid: pid}
}

func (p *LinuxProcess) Pid() int { return p.pid }

// Attach stops the target with PTRACE_ATTACH and waits for the stop to
// land.
func (p *LinuxProcess) Attach() error {
	if p.attached {
		return nil
	}
	if err := unix.PtraceAttach(p.pid); err != nil {
		return fmt.Errorf("ptrace attach pid %d: %w", p.pid, err)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(p.pid, &ws, 0, nil); err != nil {
		_ = unix.PtraceDetach(p.pid)
		return fmt.Errorf("wait for stop of pid %d: %w", p.pid, err)
	}
	p.attached = true
	return nil
}

// Detach resumes the target. Safe to call when not attached or after
// the target exited.
func (p *LinuxProcess) Detach() error {
	if !p.attached {
		return nil
	}
	p.attached = false
	if err := unix.PtraceDetach(p.pid); err != nil && err != unix.ESRCH {
		return fmt.Errorf("ptrace detach pid %d: %w", p.pid, err)
	}
	return nil
}

func (p *LinuxProcess) ReadMemory(buf []byte, addr uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	localIov := []unix.Iovec{{
		Base: &buf[0],
		Len:  uint64(len(buf)),
	}}
	remoteIov := []unix.RemoteIovec{{
		Base: uintptr(addr),
		Len:  len(buf),
	}}
	n, err := unix.ProcessVMReadv(p.pid, localIov, remoteIov, 0)
	if err != nil {
		return n, fmt.Errorf("read %d bytes at %#x: %w", len(buf), addr, err)
	}
	return n, nil
}

func (p *LinuxProcess) WriteMemory(addr uint64, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	localIov := []unix.Iovec{{
		Base: &data[0],
		Len:  uint64(len(data)),
	}}
	remoteIov := []unix.RemoteIovec{{
		Base: uintptr(addr),
		Len:  len(data),
	}}
	n, err := unix.ProcessVMWritev(p.pid, localIov, remoteIov, 0)
	if err != nil {
		return n, fmt.Errorf("write %d bytes at %#x: %w", len(data), addr, err)
	}
	return n, nil
}

// Peek reads up to 8 bytes at addr. Near the end of a mapping the read
// is retried with shrinking lengths so the tail of a region stays
// readable.
func (p *LinuxProcess) Peek(addr uint64) ([]byte, error) {
	buf := make([]byte, 8)
	var lastErr error
	for n := 8; n > 0; n-- {
		got, err := p.ReadMemory(buf[:n], addr)
		if err == nil && got == n {
			return buf[:n], nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (p *LinuxProcess) Regions(level maps.ScanLevel) ([]*maps.Region, error) {
	return maps.Read(p.pid, level)
}
