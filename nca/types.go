package nca

// DistributionType tells where the archive was distributed from.
type DistributionType uint8

const (
	Download DistributionType = iota
	GameCard
)

func (d DistributionType) String() string {
	switch d {
	case Download:
		return "Download"
	case GameCard:
		return "GameCard"
	default:
		return "unknown"
	}
}

// ContentType is the kind of content in the archive.
type ContentType uint8

const (
	Program ContentType = iota
	Meta
	Control
	Manual
	Data
	PublicData
)

func (c ContentType) String() string {
	switch c {
	case Program:
		return "Program"
	case Meta:
		return "Meta"
	case Control:
		return "Control"
	case Manual:
		return "Manual"
	case Data:
		return "Data"
	case PublicData:
		return "PublicData"
	default:
		return "unknown"
	}
}

// FsType is the filesystem type of a section.
type FsType uint8

const (
	RomFS FsType = iota
	PartitionFS
)

func (f FsType) String() string {
	switch f {
	case RomFS:
		return "RomFS"
	case PartitionFS:
		return "PartitionFS"
	default:
		return "unknown"
	}
}

// EncryptionType is the cipher applied to a section body.
type EncryptionType uint8

const (
	EncryptionAuto EncryptionType = iota
	EncryptionNone
	EncryptionXTS
	EncryptionCTR
	EncryptionCTREx
)

func (e EncryptionType) String() string {
	switch e {
	case EncryptionAuto:
		return "Auto"
	case EncryptionNone:
		return "None"
	case EncryptionXTS:
		return "AesXts"
	case EncryptionCTR:
		return "AesCtr"
	case EncryptionCTREx:
		return "AesCtrEx"
	default:
		return "unknown"
	}
}
