package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/repositories"
)

const (
	otpMin   = 100000
	otpSpan  = 900000
	otpRetry = 16
)

// GenerateOTP 生成 100000-999999 之间的六位数字提货码
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// CodeIssuer 为成员签发提货码, 保证同团未提货成员之间不重复
type CodeIssuer struct {
	generate func() (string, error)
}

func NewCodeIssuer() *CodeIssuer {
	return &CodeIssuer{generate: GenerateOTP}
}

// Issue 生成新码并覆盖成员旧码, 必须在事务中调用
func (c *CodeIssuer) Issue(ctx context.Context, tx *repositories.Store, member *models.GroupMember) (string, error) {
	for range otpRetry {
		code, err := c.generate()
		if err != nil {
			return "", fmt.Errorf("%w: generate pickup code: %v", ErrStorage, err)
		}

		inUse, err := tx.Members.CodeInUse(ctx, member.GroupID, code, member.ID)
		if err != nil {
			return "", dbErr(err, "group members")
		}
		if inUse {
			continue
		}

		member.PickupOTP = &code
		if err := tx.Members.Save(ctx, member); err != nil {
			return "", dbErr(err, "group member")
		}
		return code, nil
	}
	return "", fmt.Errorf("%w: no free pickup code for group %d", ErrStorage, member.GroupID)
}
