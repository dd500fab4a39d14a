package datapart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/NebulousLabs/errors"
	"gitlab.com/columnstore/columnstore/crypto"
	"gitlab.com/columnstore/columnstore/persist"
)

// ActiveChecks counts Check calls currently in flight across the process,
// the Go analogue of ClickHouse's CurrentMetrics::Increment RAII guard.
var ActiveChecks int64

// isSidecarFile reports whether name is one of the optional, opaque files
// hashed whole rather than parsed: their presence is part of the part
// layout but their contents are never interpreted by the checker.
func isSidecarFile(name string) bool {
	return name == "count.txt" ||
		name == "partition.dat" ||
		name == "ttl.txt" ||
		(strings.HasPrefix(name, "minmax_") && strings.HasSuffix(name, ".idx"))
}

// Check validates the on-disk representation of a data part rooted at
// path, returning the checksum set computed from its actual contents. log
// may be nil, in which case no progress is recorded.
func Check(
	path string,
	granularity IndexGranularity,
	markExt string,
	requireChecksums bool,
	pkTypes []ColumnType,
	indices []SecondaryIndex,
	isCancelled func() bool,
	log *persist.Logger,
) (Checksums, error) {
	atomic.AddInt64(&ActiveChecks, 1)
	defer atomic.AddInt64(&ActiveChecks, -1)

	cancelled := func() bool { return isCancelled != nil && isCancelled() }

	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}

	columns, err := ReadColumnsFile(filepath.Join(path, "columns.txt"))
	if err != nil {
		return nil, errors.Extend(err, errors.New("could not read columns.txt"))
	}

	var checksumsTxt Checksums
	checksumsTxtPath := filepath.Join(path, "checksums.txt")
	_, statErr := os.Stat(checksumsTxtPath)
	sidecarExists := statErr == nil
	if requireChecksums || sidecarExists {
		checksumsTxt, err = LoadChecksums(checksumsTxtPath)
		if err != nil {
			return nil, errors.Extend(err, errors.New("could not read checksums.txt"))
		}
	}

	checksumsData := make(Checksums)

	var marksInPrimaryKey int
	if len(pkTypes) > 0 {
		n, err := checkPrimaryIndex(path, pkTypes, checksumsData, cancelled)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return Checksums{}, nil
		}
		marksInPrimaryKey = n
	}

	if err := checkSidecarFiles(path, checksumsData); err != nil {
		return nil, err
	}
	if cancelled() {
		return Checksums{}, nil
	}

	var rows *int
	if countData, err := os.ReadFile(filepath.Join(path, "count.txt")); err == nil {
		count, perr := strconv.Atoi(strings.TrimSpace(string(countData)))
		if perr != nil {
			return nil, errors.Extend(perr, errors.New("could not parse count.txt"))
		}
		rows = &count
	} else if !os.IsNotExist(err) {
		return nil, errors.Extend(err, errors.New("could not read count.txt"))
	}

	for _, idx := range indices {
		stop, err := checkSecondaryIndex(path, idx, markExt, granularity, checksumsData, cancelled)
		if err != nil {
			return nil, err
		}
		if stop {
			return Checksums{}, nil
		}
	}

	for _, nt := range columns {
		if log != nil {
			log.Println("DEBUG: checking column " + nt.Name + " in " + path)
		}
		stop, columnSize, err := checkColumn(path, nt, markExt, granularity, checksumsData, cancelled)
		if err != nil {
			return nil, err
		}
		if stop {
			return Checksums{}, nil
		}

		if rows == nil {
			r := columnSize
			rows = &r
		} else if *rows != columnSize {
			return nil, errors.Extend(ErrSizesOfColumnsDontMatch, errors.New(fmt.Sprintf(
				"unexpected number of rows in column %s (%d, expected: %d)", nt.Name, columnSize, *rows)))
		}
	}

	if rows == nil {
		return nil, errors.Extend(ErrEmptyListOfColumns, errors.New("no columns in data part"))
	}

	if len(pkTypes) > 0 {
		expectedMarks := granularity.GetMarksCount()
		if expectedMarks != marksInPrimaryKey {
			return nil, errors.Extend(ErrCorruptedData, errors.New(fmt.Sprintf(
				"size of primary key doesn't match expected number of marks. "+
					"Number of rows in columns: %d, expected number of marks: %d, size of primary key: %d",
				*rows, expectedMarks, marksInPrimaryKey)))
		}
	}

	// A present but empty checksums.txt is not verified unless requireChecksums is set.
	if requireChecksums || len(checksumsTxt) != 0 {
		if err := checksumsTxt.CheckEqual(checksumsData, true); err != nil {
			return nil, err
		}
	}

	return checksumsData, nil
}

// checkPrimaryIndex streams primary.idx, deserializing one tuple of
// pkTypes per granule, and records its checksum. It returns -1 if
// cancelled mid-stream.
func checkPrimaryIndex(path string, pkTypes []ColumnType, checksumsData Checksums, cancelled func() bool) (int, error) {
	f, err := os.Open(filepath.Join(path, "primary.idx"))
	if err != nil {
		return 0, errors.Extend(err, errors.New("could not open primary.idx"))
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, errors.Extend(err, errors.New("could not stat primary.idx"))
	}

	hashing := crypto.NewHashingReader(f)
	marks := 0
	for hashing.Count() < info.Size() {
		if cancelled() {
			return -1, nil
		}
		marks++
		for _, pk := range pkTypes {
			reader, ok := pk.(PrimaryKeyReader)
			if !ok {
				return 0, errors.Extend(ErrLogicalError, errors.New("column type cannot be used as a primary key component: "+pk.String()))
			}
			if err := reader.ReadPrimaryKeyValue(hashing); err != nil {
				return 0, errors.Extend(err, errors.New("could not read primary.idx"))
			}
		}
	}

	checksumsData["primary.idx"] = Checksum{Size: uint64(hashing.Count()), Hash: hashing.Sum()}
	return marks, nil
}

// checkSidecarFiles hashes each optional opaque file present in path
// (count.txt, partition.dat, minmax_*.idx, ttl.txt) in full.
func checkSidecarFiles(path string, checksumsData Checksums) error {
	dirPath := strings.TrimSuffix(path, "/")
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return errors.Extend(err, errors.New("could not list part directory"))
	}
	for _, entry := range entries {
		if entry.IsDir() || !isSidecarFile(entry.Name()) {
			continue
		}
		f, err := os.Open(filepath.Join(path, entry.Name()))
		if err != nil {
			return errors.Extend(err, errors.New("could not open "+entry.Name()))
		}
		hashing := crypto.NewHashingReader(f)
		_, copyErr := io.Copy(io.Discard, hashing)
		f.Close()
		if copyErr != nil {
			return errors.Extend(copyErr, errors.New("could not read "+entry.Name()))
		}
		checksumsData[entry.Name()] = Checksum{Size: uint64(hashing.Count()), Hash: hashing.Sum()}
	}
	return nil
}

// checkSecondaryIndex validates one skip index's stream, returning true
// if cancellation cut the check short.
func checkSecondaryIndex(path string, idx SecondaryIndex, markExt string, granularity IndexGranularity, checksumsData Checksums, cancelled func() bool) (bool, error) {
	stream, err := OpenStream(path, idx.FileName(), ".idx", markExt, granularity)
	if err != nil {
		return false, errors.Extend(err, errors.New("could not open index "+idx.FileName()))
	}
	defer stream.Close()

	markNum := 0
	for {
		eof, err := stream.decompressedEOF()
		if err != nil {
			return false, errors.Extend(err, errors.New("could not read index "+idx.FileName()))
		}
		if eof {
			break
		}
		if stream.mrkFileEOF() {
			return false, errors.Extend(ErrCorruptedData, errors.New("unexpected end of mrk file while reading index "+idx.FileName()))
		}

		if err := stream.assertMark(false); err != nil {
			return false, errors.Extend(err, errors.New(fmt.Sprintf(
				"cannot read mark %d in file %s, mrk file offset: %d", markNum, stream.MrkPath, stream.mrkHashing.Count())))
		}

		granule := idx.CreateGranule()
		if err := granule.DeserializeBinary(stream.uncompressedHashing); err != nil {
			return false, errors.Extend(err, errors.New(fmt.Sprintf(
				"cannot read granule %d in file %s, mrk file offset: %d", markNum, stream.BinPath, stream.mrkHashing.Count())))
		}
		markNum++

		if cancelled() {
			return true, nil
		}
	}

	if err := stream.assertEnd(); err != nil {
		return false, err
	}
	stream.saveChecksums(checksumsData)
	return false, nil
}

// checkColumn reads every substream of one column's granules, validating
// marks and accumulating checksums. It returns the total row count read.
func checkColumn(path string, nt NameAndType, markExt string, granularity IndexGranularity, checksumsData Checksums, cancelled func() bool) (bool, int, error) {
	substreams := nt.Type.Substreams(nt.Name)
	streams := make(map[string]*Stream, len(substreams))
	for _, sub := range substreams {
		st, err := OpenStream(path, sub.FileName, ".bin", markExt, granularity)
		if err != nil {
			closeStreams(streams)
			return false, 0, errors.Extend(err, errors.New("could not open column "+nt.Name))
		}
		streams[sub.FileName] = st
	}
	defer closeStreams(streams)

	columnSize := 0
	markNum := 0
	for {
		marksEOF := false
		for _, sub := range substreams {
			st := streams[sub.FileName]
			if st.mrkFileEOF() {
				marksEOF = true
				continue
			}
			if err := st.assertMark(sub.IsDictionaryKeys()); err != nil {
				return false, 0, errors.Extend(err, errors.New(fmt.Sprintf(
					"cannot read mark %d at row %d in file %s, mrk file offset: %d",
					markNum, columnSize, st.MrkPath, st.mrkHashing.Count())))
			}
		}

		rowsAfterMark := granularity.GetMarkRows(markNum)
		markNum++

		readSize, err := nt.Type.DeserializeRows(streams, nt.Name, rowsAfterMark)
		if err != nil {
			return false, 0, errors.Extend(err, errors.New("could not read column "+nt.Name))
		}
		columnSize += readSize

		if readSize < rowsAfterMark || markNum == granularity.GetMarksCount() {
			break
		} else if marksEOF {
			return false, 0, errors.Extend(ErrCorruptedData, errors.New("unexpected end of mrk file while reading column "+nt.Name))
		}

		if cancelled() {
			return true, 0, nil
		}
	}

	for _, sub := range substreams {
		st := streams[sub.FileName]
		if err := st.assertEnd(); err != nil {
			return false, 0, err
		}
		st.saveChecksums(checksumsData)
	}

	if cancelled() {
		return true, 0, nil
	}

	return false, columnSize, nil
}

func closeStreams(streams map[string]*Stream) {
	for _, st := range streams {
		st.Close()
	}
}
