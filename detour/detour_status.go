package detour

// DtStatus is the outcome of a navmesh operation: one high level bit plus
// optional detail bits.
type DtStatus uint32

const (
	// High level status.
	DT_FAILURE     DtStatus = 1 << 31 // Operation failed.
	DT_SUCCESS     DtStatus = 1 << 30 // Operation succeed.
	DT_IN_PROGRESS DtStatus = 1 << 29 // Operation still in progress.

	// Detail information for status.
	DT_STATUS_DETAIL_MASK DtStatus = 0x0ffffff
	DT_WRONG_MAGIC        DtStatus = 1 << 0 // Input data is not recognized.
	DT_WRONG_VERSION      DtStatus = 1 << 1 // Input data is in wrong version.
	DT_OUT_OF_MEMORY      DtStatus = 1 << 2 // Operation ran out of memory.
	DT_INVALID_PARAM      DtStatus = 1 << 3 // An input parameter was invalid.
	DT_BUFFER_TOO_SMALL   DtStatus = 1 << 4 // Result buffer for the query was too small to store all results.
	DT_OUT_OF_NODES       DtStatus = 1 << 5 // Query ran out of nodes during search.
	DT_PARTIAL_RESULT     DtStatus = 1 << 6 // Query did not reach the end location, returning best guess.
)

// Returns true of status is success.
func (status DtStatus) Succeed() bool {
	return status&DT_SUCCESS != 0
}

// Returns true of status is failure.
func (status DtStatus) Failed() bool {
	return status&DT_FAILURE != 0
}

// Returns true of status is in progress.
func (status DtStatus) InProgress() bool {
	return status&DT_IN_PROGRESS != 0
}

// Returns true if specific detail is set.
func (status DtStatus) Detail(detail DtStatus) bool {
	return status&detail != 0
}

func (status DtStatus) String() string {
	var s string
	switch {
	case status.Succeed():
		s = "success"
	case status.Failed():
		s = "failure"
	case status.InProgress():
		s = "in progress"
	default:
		s = "unknown"
	}
	details := []struct {
		bit  DtStatus
		name string
	}{
		{DT_WRONG_MAGIC, "wrong magic"},
		{DT_WRONG_VERSION, "wrong version"},
		{DT_OUT_OF_MEMORY, "out of memory"},
		{DT_INVALID_PARAM, "invalid param"},
		{DT_BUFFER_TOO_SMALL, "buffer too small"},
		{DT_OUT_OF_NODES, "out of nodes"},
		{DT_PARTIAL_RESULT, "partial result"},
	}
	for _, d := range details {
		if status.Detail(d.bit) {
			s += "|" + d.name
		}
	}
	return s
}
