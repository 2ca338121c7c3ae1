package sdfat

// IOFlags controls how a file handle may be used. The bits are stored on the
// open handle and consulted by every read, write, and truncate.
type IOFlags uint8

const (
	O_RDONLY IOFlags = 1 << iota
	O_WRONLY
	O_APPEND
	O_SYNC
	O_TRUNC
	O_AT_END
	O_CREATE
	O_EXCL
)

const O_RDWR = O_RDONLY | O_WRONLY

// O_ACCMODE masks the bits that are kept on an open handle. Creation flags only
// matter while opening.
const O_ACCMODE = O_RDWR | O_APPEND | O_SYNC

func (flags IOFlags) Read() bool {
	return flags&O_RDONLY != 0
}

func (flags IOFlags) Write() bool {
	return flags&O_WRONLY != 0
}

func (flags IOFlags) Append() bool {
	return flags&O_APPEND != 0
}

func (flags IOFlags) Sync() bool {
	return flags&O_SYNC != 0
}

func (flags IOFlags) Truncate() bool {
	return flags&O_TRUNC != 0
}

func (flags IOFlags) AtEnd() bool {
	return flags&O_AT_END != 0
}

func (flags IOFlags) Create() bool {
	return flags&O_CREATE != 0
}

func (flags IOFlags) Exclusive() bool {
	return flags&O_EXCL != 0
}
