package iserver

// Request and response tags for the link-0 protocol (§4.H). The original
// isproto.h's numeric values were not recoverable from the retrieved
// source (it survived filtering as comments only); the one fixed point is
// REQ_ID, whose value is pinned by spec.md's Concrete Scenario 2 wire bytes
// [01,00,A0] to exactly 0xA0. Every other value below is this repo's own
// self-consistent numbering clustered around that anchor, recorded as a
// decision (not a corpus fact) in DESIGN.md.
const (
	ReqOpen       = 0x90
	ReqClose      = 0x91
	ReqRead       = 0x92
	ReqWrite      = 0x93
	ReqGets       = 0x94
	ReqPuts       = 0x95
	ReqFlush      = 0x96
	ReqSeek       = 0x97
	ReqTell       = 0x98
	ReqEOF        = 0x99
	ReqFError     = 0x9A
	ReqRemove     = 0x9B
	ReqRename     = 0x9C
	ReqGetBlock   = 0x9D
	ReqPutBlock   = 0x9E
	ReqIsATTY     = 0x9F
	ReqID         = 0xA0 // fixed by spec.md §8 Concrete Scenario 2
	ReqOpenRec    = 0xA1
	ReqGetRec     = 0xA2
	ReqPutRec     = 0xA3
	ReqPutEOF     = 0xA4
	ReqGetKey     = 0xA5
	ReqPollKey    = 0xA6
	ReqGetEnv     = 0xA7
	ReqTime       = 0xA8
	ReqSystem     = 0xA9
	ReqExit       = 0xAA
	ReqCommand    = 0xAB
	ReqCore       = 0xAC
	ReqGetInfo    = 0xAD
	ReqMSDOS      = 0xAE
	ReqFileExists = 0xAF
	ReqTranslate  = 0xB0
	ReqFErrStat   = 0xB1
	ReqCommandArg = 0xB2
	ReqPutChar    = 0xB3 // extension, per §4.I
)

const (
	ResSuccess      = 0xC0
	ResUnimplemented = 0xC1
	ResError        = 0xC2
	ResNoPriv       = 0xC3
	ResNoResource   = 0xC4
	ResNoFile       = 0xC5
	ResTruncated    = 0xC6
	ResBadID        = 0xC7
	ResNoPosn       = 0xC8
	ResNotAvailable = 0xC9
	ResEOF          = 0xCA
	ResAKeyReply    = 0xCB
	ResBadParams    = 0xCC
	ResNoTerm       = 0xCD
	ResRecTooBig    = 0xCE
)
