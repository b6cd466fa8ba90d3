// Package loader reads and writes the assembled-program file format: the
// opaque container the assembler hands to the simulator. The format is a
// small self-describing binary — a magic/version header, the entry PC,
// and a sequence of (address, text-flag, bytes) regions — and round-trips
// the memory image and entry point losslessly.
package loader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/archlab/mipsooo/emu"
)

// magic identifies the assembled-program container format.
const magic = uint32(0x4D503253) // "MP2S"

// version is the container format's wire version.
const version = uint8(1)

// Region is one contiguous span of bytes to be installed into memory
// before execution starts. Text regions extend the fetchable instruction
// range (emu.Memory.LoadText); non-text (.data) regions do not
// (emu.Memory.LoadData).
type Region struct {
	Addr uint32
	Text bool
	Data []byte
}

// Program is the assembled-program file's in-memory representation: the
// memory image as a set of regions, plus the entry PC.
type Program struct {
	Entry   uint32
	Regions []Region
}

// InstallInto writes every region into mem, text regions through
// LoadText and data regions through LoadData.
func (p *Program) InstallInto(mem *emu.Memory) {
	for _, r := range p.Regions {
		if r.Text {
			mem.LoadText(r.Addr, r.Data)
		} else {
			mem.LoadData(r.Addr, r.Data)
		}
	}
}

// Save serialises prog to w in the container format described above.
func Save(w io.Writer, prog *Program) error {
	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.BigEndian, magic); err != nil {
		return fmt.Errorf("loader: write magic: %w", err)
	}
	if err := binary.Write(bw, binary.BigEndian, version); err != nil {
		return fmt.Errorf("loader: write version: %w", err)
	}
	if err := binary.Write(bw, binary.BigEndian, prog.Entry); err != nil {
		return fmt.Errorf("loader: write entry: %w", err)
	}
	if err := writeUvarint(bw, uint64(len(prog.Regions))); err != nil {
		return fmt.Errorf("loader: write region count: %w", err)
	}

	for i, r := range prog.Regions {
		if err := binary.Write(bw, binary.BigEndian, r.Addr); err != nil {
			return fmt.Errorf("loader: region %d: write addr: %w", i, err)
		}
		flag := uint8(0)
		if r.Text {
			flag = 1
		}
		if err := bw.WriteByte(flag); err != nil {
			return fmt.Errorf("loader: region %d: write flag: %w", i, err)
		}
		if err := writeUvarint(bw, uint64(len(r.Data))); err != nil {
			return fmt.Errorf("loader: region %d: write length: %w", i, err)
		}
		if _, err := bw.Write(r.Data); err != nil {
			return fmt.Errorf("loader: region %d: write data: %w", i, err)
		}
	}

	return bw.Flush()
}

// Load reads a Program back from r, the inverse of Save. It returns an
// error if the magic/version header doesn't match, which callers should
// treat as "not an assembled-program file" rather than an internal bug.
func Load(r io.Reader) (*Program, error) {
	br := bufio.NewReader(r)

	var gotMagic uint32
	if err := binary.Read(br, binary.BigEndian, &gotMagic); err != nil {
		return nil, fmt.Errorf("loader: read magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("loader: not an assembled-program file (bad magic 0x%08x)", gotMagic)
	}

	var gotVersion uint8
	if err := binary.Read(br, binary.BigEndian, &gotVersion); err != nil {
		return nil, fmt.Errorf("loader: read version: %w", err)
	}
	if gotVersion != version {
		return nil, fmt.Errorf("loader: unsupported container version %d", gotVersion)
	}

	prog := &Program{}
	if err := binary.Read(br, binary.BigEndian, &prog.Entry); err != nil {
		return nil, fmt.Errorf("loader: read entry: %w", err)
	}

	count, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("loader: read region count: %w", err)
	}

	prog.Regions = make([]Region, 0, count)
	for i := uint64(0); i < count; i++ {
		var reg Region

		if err := binary.Read(br, binary.BigEndian, &reg.Addr); err != nil {
			return nil, fmt.Errorf("loader: region %d: read addr: %w", i, err)
		}
		flag, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("loader: region %d: read flag: %w", i, err)
		}
		reg.Text = flag != 0

		length, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("loader: region %d: read length: %w", i, err)
		}
		reg.Data = make([]byte, length)
		if _, err := io.ReadFull(br, reg.Data); err != nil {
			return nil, fmt.Errorf("loader: region %d: read data: %w", i, err)
		}

		prog.Regions = append(prog.Regions, reg)
	}

	return prog, nil
}

// writeUvarint encodes v as an unsigned LEB128 varint.
func writeUvarint(w io.ByteWriter, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	for _, b := range buf[:n] {
		if err := w.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}
