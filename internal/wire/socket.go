package wire

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MaxAncillaryFDs bounds how many descriptors a single datagram may
// carry, matching NumMembers since a frame can never reference more
// TagFD slots than it has members.
const MaxAncillaryFDs = NumMembers

// NewSupervisorPair creates a connected SOCK_SEQPACKET unix-domain
// socket pair for a container actor and its supervisor, grounded on
// the host/guest addressing model in oriys-nova's internal/pkg/vsock
// (a real deployment substitutes a vsock endpoint; this module's
// concurrency core only needs a datagram boundary that preserves
// message framing and carries ancillary fds, which a socket pair
// provides identically for local testing).
func NewSupervisorPair() (supervisor, container int, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("wire: socketpair: %w", err)
	}
	return fds[0], fds[1], nil
}

// SendFrame writes f's marshaled bytes to fd as a single datagram,
// passing fds as SCM_RIGHTS ancillary data. The caller retains
// ownership of fds; SendFrame does not close them.
func SendFrame(fd int, f *Frame, fds []int) error {
	buf := f.Marshal()
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	return unix.Sendmsg(fd, buf, oob, nil, 0)
}

// RecvFrame reads one datagram from fd, parses any SCM_RIGHTS
// ancillary fds, and validates the payload via Unmarshal. On any
// validation error, every fd received in this datagram is closed
// before returning so a rejected message never leaks descriptors —
// the fuzzing obligation in §4.7 exists specifically to confirm this
// path.
func RecvFrame(fd int) (*Frame, []int, error) {
	buf := make([]byte, FrameSize)
	oobBuf := make([]byte, unix.CmsgSpace(MaxAncillaryFDs*4))

	n, oobn, _, _, err := unix.Recvmsg(fd, buf, oobBuf, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: recvmsg: %w", err)
	}

	fds, err := parseAncillaryFDs(oobBuf[:oobn])
	if err != nil {
		closeAll(fds)
		return nil, nil, err
	}

	frame, err := Unmarshal(buf[:n], len(fds))
	if err != nil {
		closeAll(fds)
		return nil, nil, err
	}

	return frame, fds, nil
}

func parseAncillaryFDs(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("wire: parse ancillary data: %w", err)
	}
	var fds []int
	for _, m := range msgs {
		got, err := unix.ParseUnixRights(&m)
		if err != nil {
			continue
		}
		fds = append(fds, got...)
	}
	return fds, nil
}

func closeAll(fds []int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}
