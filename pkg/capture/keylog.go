package capture

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/yly97/tlsfront/pkg/session"
)

const keyLogLabel = "CLIENT_RANDOM"

// KeyLog client random到master secret的映射，键是client random的十六进制
type KeyLog map[string][]byte

// ParseKeyLog 读取NSS key log格式，只保留TLS 1.2使用的CLIENT_RANDOM行，
// 空行、注释以及其它标签的行都会跳过
func ParseKeyLog(r io.Reader) (KeyLog, error) {
	keyLog := KeyLog{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		fields := bytes.Fields(text)
		if string(fields[0]) != keyLogLabel {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d", errInvalidKeyLog, line)
		}
		cr, err := hex.DecodeString(string(fields[1]))
		if err != nil || len(cr) != session.RandomLength {
			return nil, fmt.Errorf("%w: line %d: client random", errInvalidKeyLog, line)
		}
		ms, err := hex.DecodeString(string(fields[2]))
		if err != nil || len(ms) != session.MasterSecretLength {
			return nil, fmt.Errorf("%w: line %d: master secret", errInvalidKeyLog, line)
		}
		keyLog[hex.EncodeToString(cr)] = ms
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read key log")
	}
	return keyLog, nil
}

func LoadKeyLog(fs afero.Fs, path string) (KeyLog, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open key log %s", path)
	}
	defer f.Close()
	return ParseKeyLog(f)
}

func (k KeyLog) Lookup(clientRandom []byte) ([]byte, bool) {
	ms, ok := k[hex.EncodeToString(clientRandom)]
	return ms, ok
}
