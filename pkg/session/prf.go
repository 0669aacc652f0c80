package session

import (
	"github.com/pion/dtls/v2/pkg/crypto/hash"
	"github.com/pion/dtls/v2/pkg/crypto/prf"
)

const keyExpansionLabel = "key expansion"

// Role 连接中的角色
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

func (r Role) peer() Role {
	if r == RoleServer {
		return RoleClient
	}
	return RoleServer
}

// Mode 计算Finished时是为了发送(Write)还是校验对端(Read)
type Mode int

const (
	ModeWrite Mode = iota
	ModeRead
)

func (m Mode) String() string {
	if m == ModeRead {
		return "read"
	}
	return "write"
}

// PHash RFC 5246 P_hash
func PHash(secret, seed []byte, n int, h hash.Algorithm) ([]byte, error) {
	if n < 0 {
		return nil, ErrDerivationPrecondition
	}
	return prf.PHash(secret, seed, n, hashFunc(h))
}

// MasterSecret PRF(pms, "master secret", client_random + server_random)[0:48]
func MasterSecret(preMasterSecret, clientRandom, serverRandom []byte, h hash.Algorithm) ([]byte, error) {
	if len(preMasterSecret) == 0 || len(clientRandom) != RandomLength || len(serverRandom) != RandomLength {
		return nil, ErrDerivationPrecondition
	}
	return prf.MasterSecret(preMasterSecret, clientRandom, serverRandom, hashFunc(h))
}

// KeyBlock PRF(ms, "key expansion", server_random + client_random)[0:n]，
// 注意两个随机数的顺序和MasterSecret相反
func KeyBlock(masterSecret, serverRandom, clientRandom []byte, n int, h hash.Algorithm) ([]byte, error) {
	if len(masterSecret) != MasterSecretLength || len(clientRandom) != RandomLength || len(serverRandom) != RandomLength {
		return nil, ErrDerivationPrecondition
	}
	seed := make([]byte, 0, len(keyExpansionLabel)+2*RandomLength)
	seed = append(seed, keyExpansionLabel...)
	seed = append(seed, serverRandom...)
	seed = append(seed, clientRandom...)
	return PHash(masterSecret, seed, n, h)
}

// VerifyData Finished消息中的12字节。ModeWrite使用自己角色的label，
// ModeRead计算对端应当发来的值，使用对端角色的label
func VerifyData(role Role, mode Mode, transcript, masterSecret []byte, h hash.Algorithm) ([]byte, error) {
	if len(masterSecret) != MasterSecretLength {
		return nil, ErrDerivationPrecondition
	}
	labelRole := role
	if mode == ModeRead {
		labelRole = role.peer()
	}
	if labelRole == RoleClient {
		return prf.VerifyDataClient(masterSecret, transcript, hashFunc(h))
	}
	return prf.VerifyDataServer(masterSecret, transcript, hashFunc(h))
}
