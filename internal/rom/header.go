// Package rom probes game images for the host's logs. Cores do their own
// loading; the host only reads enough to say what it is handing over.
package rom

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const headerSize = 16

var (
	ErrTooSmall  = errors.New("rom: image too small to contain a header")
	ErrNotINES   = errors.New("rom: not an iNES image")
	inesMagic    = [4]byte{'N', 'E', 'S', 0x1a}
	prgBankBytes = 16 * 1024
	chrBankBytes = 8 * 1024
)

// Mirroring is the nametable arrangement wired on the cartridge.
type Mirroring int

const (
	MirrorHorizontal Mirroring = iota
	MirrorVertical
	MirrorFourScreen
)

func (m Mirroring) String() string {
	switch m {
	case MirrorVertical:
		return "vertical"
	case MirrorFourScreen:
		return "four-screen"
	}
	return "horizontal"
}

// Header is a decoded iNES / NES 2.0 header.
type Header struct {
	NES2      bool
	PRGBanks  int // 16 KiB units
	CHRBanks  int // 8 KiB units, 0 means CHR RAM
	Mapper    int
	Submapper int // NES 2.0 only
	Mirroring Mirroring
	Battery   bool
	Trainer   bool

	// Decoded helpers (for logs)
	PRGSizeBytes int
	CHRSizeBytes int
	MapperName   string
}

// ParseHeader decodes the first 16 bytes of an image.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < headerSize {
		return nil, ErrTooSmall
	}
	if [4]byte(data[:4]) != inesMagic {
		return nil, ErrNotINES
	}
	f6, f7 := data[6], data[7]

	h := &Header{
		NES2:     f7&0x0c == 0x08,
		PRGBanks: int(data[4]),
		CHRBanks: int(data[5]),
		Mapper:   int(f6>>4) | int(f7&0xf0),
		Battery:  f6&0x02 != 0,
		Trainer:  f6&0x04 != 0,
	}
	switch {
	case f6&0x08 != 0:
		h.Mirroring = MirrorFourScreen
	case f6&0x01 != 0:
		h.Mirroring = MirrorVertical
	}
	if h.NES2 {
		h.Mapper |= int(data[8]&0x0f) << 8
		h.Submapper = int(data[8] >> 4)
		h.PRGBanks |= int(data[9]&0x0f) << 8
		h.CHRBanks |= int(data[9]>>4) << 8
	}

	h.PRGSizeBytes = h.PRGBanks * prgBankBytes
	h.CHRSizeBytes = h.CHRBanks * chrBankBytes
	h.MapperName = mapperName(h.Mapper)
	return h, nil
}

// ReadHeader parses the header of the file at path.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrTooSmall
		}
		return nil, err
	}
	return ParseHeader(buf)
}

// Size is the image size the header promises, trainer included.
func (h *Header) Size() int {
	n := headerSize + h.PRGSizeBytes + h.CHRSizeBytes
	if h.Trainer {
		n += 512
	}
	return n
}

func (h *Header) String() string {
	return fmt.Sprintf("mapper %d (%s) prg=%dK chr=%dK %s", h.Mapper, h.MapperName,
		h.PRGSizeBytes/1024, h.CHRSizeBytes/1024, h.Mirroring)
}

func mapperName(m int) string {
	switch m {
	case 0:
		return "NROM"
	case 1:
		return "MMC1"
	case 2:
		return "UxROM"
	case 3:
		return "CNROM"
	case 4:
		return "MMC3"
	case 5:
		return "MMC5"
	case 7:
		return "AxROM"
	case 9:
		return "MMC2"
	case 10:
		return "MMC4"
	case 66:
		return "GxROM"
	default:
		return "Other/unknown"
	}
}
