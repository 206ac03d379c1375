package identity

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zitadel/zitadel-go/v3/pkg/client"
	"github.com/zitadel/zitadel-go/v3/pkg/client/zitadel/session/v2"
	user "github.com/zitadel/zitadel-go/v3/pkg/client/zitadel/user/v2"
	"github.com/zitadel/zitadel-go/v3/pkg/zitadel"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

// ZitadelConfig configures the Zitadel connection
type ZitadelConfig struct {
	Domain string
	OrgID  string
	// PAT takes precedence over KeyPath.
	PAT     string
	KeyPath string
	// InsecurePort enables a plaintext connection (local instances).
	InsecurePort string
	SessionTTL   time.Duration
}

// ZitadelProvider manages users and sessions through the Zitadel v2 APIs.
// Users are stored with username = phone number.
type ZitadelProvider struct {
	users      user.UserServiceClient
	sessions   session.SessionServiceClient
	orgID      string
	sessionTTL time.Duration
}

// NewZitadelProvider connects to the configured instance
func NewZitadelProvider(ctx context.Context, cfg ZitadelConfig) (*ZitadelProvider, error) {
	var instance *zitadel.Zitadel
	if cfg.InsecurePort != "" {
		instance = zitadel.New(cfg.Domain, zitadel.WithInsecure(cfg.InsecurePort))
		log.Printf("Using insecure connection for %s", cfg.Domain)
	} else {
		instance = zitadel.New(cfg.Domain)
	}

	var authOption client.Option
	if cfg.PAT != "" {
		authOption = client.WithAuth(client.PAT(cfg.PAT))
	} else {
		authOption = client.WithAuth(client.DefaultServiceUserAuthentication(cfg.KeyPath, client.ScopeZitadelAPI()))
	}

	c, err := client.New(ctx, instance, authOption)
	if err != nil {
		return nil, fmt.Errorf("failed to create zitadel client: %w", err)
	}
	log.Printf("Zitadel client initialized for domain: %s", cfg.Domain)

	return newZitadelProvider(c.UserServiceV2(), c.SessionServiceV2(), cfg.OrgID, cfg.SessionTTL), nil
}

func newZitadelProvider(users user.UserServiceClient, sessions session.SessionServiceClient, orgID string, ttl time.Duration) *ZitadelProvider {
	return &ZitadelProvider{users: users, sessions: sessions, orgID: orgID, sessionTTL: ttl}
}

// FindUserByPhone implements Provider
func (p *ZitadelProvider) FindUserByPhone(ctx context.Context, phone string) (string, error) {
	resp, err := p.users.ListUsers(ctx, &user.ListUsersRequest{
		Queries: []*user.SearchQuery{
			{
				Query: &user.SearchQuery_UserNameQuery{
					UserNameQuery: &user.UserNameQuery{UserName: phone},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("zitadel: list users: %w", err)
	}
	if len(resp.GetResult()) == 0 {
		return "", ErrUserNotFound
	}
	return resp.GetResult()[0].GetUserId(), nil
}

// CreateUser implements Provider. Email and phone are marked verified: the phone
// was just proven by OTP and the email is synthetic.
func (p *ZitadelProvider) CreateUser(ctx context.Context, u NewUser) (string, error) {
	given, family := SplitName(u.FullName)
	if given == "" {
		given, family = u.Phone, u.Phone
	}
	username := u.Phone

	resp, err := p.users.CreateUser(ctx, &user.CreateUserRequest{
		OrganizationId: p.orgID,
		Username:       &username,
		UserType: &user.CreateUserRequest_Human_{
			Human: &user.CreateUserRequest_Human{
				Profile: &user.SetHumanProfile{
					GivenName:  given,
					FamilyName: family,
				},
				Email: &user.SetHumanEmail{
					Email:        u.Email,
					Verification: &user.SetHumanEmail_IsVerified{IsVerified: true},
				},
				Phone: &user.SetHumanPhone{
					Phone:        u.Phone,
					Verification: &user.SetHumanPhone_IsVerified{IsVerified: true},
				},
			},
		},
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return "", ErrUserExists
		}
		return "", fmt.Errorf("zitadel: create user: %w", err)
	}
	return resp.GetId(), nil
}

// IssueSession implements Provider. The session token is the access token.
func (p *ZitadelProvider) IssueSession(ctx context.Context, userID, phone string) (Session, error) {
	resp, err := p.sessions.CreateSession(ctx, &session.CreateSessionRequest{
		Checks: &session.Checks{
			User: &session.CheckUser{
				Search: &session.CheckUser_UserId{UserId: userID},
			},
		},
		Lifetime: durationpb.New(p.sessionTTL),
	})
	if err != nil {
		return Session{}, fmt.Errorf("zitadel: create session: %w", err)
	}
	return Session{
		AccessToken: resp.GetSessionToken(),
		TokenType:   "bearer",
		ExpiresIn:   int(p.sessionTTL.Seconds()),
	}, nil
}
