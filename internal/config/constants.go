package config

// ProjectFileNames are the recognized project file names, in lookup order.
var ProjectFileNames = []string{"matchgen.yaml", "matchgen.yml"}

// TreeFileExtensions are the recognized decision tree file extensions
var TreeFileExtensions = []string{".yaml", ".yml"}

// DomainValueCtor is the constructor that marks a literal (domain value) arm.
// Switches containing it compare the raw subject instead of its tag.
const DomainValueCtor = `\dv`

// Runtime type names shared with the term layout
const (
	BlockTypeName        = "block"
	BlockHeaderTypeName  = "blockheader"
	BlockTypePrefix      = "block_"
	MpzTypeName          = "mpz"
	FloatingTypeName     = "floating"
	StringBufferTypeName = "stringbuffer"
	MapTypeName          = "map"
	ListTypeName         = "list"
	SetTypeName          = "set"
)

// Generated function and block names
const (
	EvalFuncPrefix  = "eval_"
	SubjectPrefix   = "subject"
	AbortFuncName   = "abort"
	EntryBlockName  = "entry"
	StuckBlockName  = "stuck"
	ConstBlockName  = "constant"
	HeapBlockName   = "block"
	TagBlockName    = "getTag"
	TagPhiName      = "phi"
	CaseBlockInfix  = "_case_"
	DefaultFileName = "out.ll"
)

// Block layout
const (
	// FirstFieldOffset is the struct index of the first child of a block;
	// index 0 is the header and index 1 the zero-length child array.
	FirstFieldOffset = 2

	// ImmediateTagShift is how far the tag of an immediate is shifted up.
	ImmediateTagShift = 32

	// ImmediateBit marks a word as an immediate rather than a block address.
	ImmediateBit = 1
)

// CodegenVersion is bumped when the emitted IR changes shape, so cached
// artifacts from older builds are not reused.
const CodegenVersion = "v1"

// Version is the matchgen release reported by -version.
const Version = "0.3.0"
