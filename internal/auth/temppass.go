package auth

import (
	"crypto/rand"
	"math/big"
)

// Alfabeto sem caracteres ambíguos (0/O, 1/l/I) para senhas ditadas por
// telefone durante o onboarding.
const tempPasswordAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

const tempPasswordLength = 12

// GenerateTempPassword cria a senha temporária entregue ao colaborador
// recém-aprovado; o perfil nasce com must_change_password ligado.
func GenerateTempPassword() (string, error) {
	buf := make([]byte, tempPasswordLength)
	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = tempPasswordAlphabet[n.Int64()]
	}
	return string(buf), nil
}
