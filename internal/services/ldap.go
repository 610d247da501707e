package services

import (
	"crypto/tls"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/ls1intum/thesis-management-sub000/internal/config"
)

type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

type LDAPUser struct {
	DN           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	UniversityID string
}

var ldapUserAttributes = []string{"dn", "cn", "givenName", "sn", "mail", "uid", "sAMAccountName", "employeeNumber"}

// connect dials the directory and binds with the service account if one is configured
func (s *LDAPService) connect() (*ldap.Conn, error) {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var conn *ldap.Conn
	var err error
	if s.config.UseSSL {
		conn, err = ldap.DialTLS("tcp", addr, &tls.Config{ServerName: s.config.Host})
	} else {
		conn, err = ldap.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}
	return conn, nil
}

func (s *LDAPService) findUser(conn *ldap.Conn, username string) (*ldap.Entry, error) {
	searchRequest := ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf(s.config.UserFilter, ldap.EscapeFilter(username)),
		ldapUserAttributes,
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("user not found in LDAP")
	}
	if len(result.Entries) > 1 {
		return nil, fmt.Errorf("multiple users found in LDAP")
	}
	return result.Entries[0], nil
}

// Authenticate verifies the password by binding as the user
func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	if !s.config.Enabled {
		return nil, fmt.Errorf("LDAP is not enabled")
	}

	conn, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	entry, err := s.findUser(conn, username)
	if err != nil {
		return nil, err
	}
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	user := &LDAPUser{
		DN:           entry.DN,
		Username:     entry.GetAttributeValue("uid"),
		Email:        entry.GetAttributeValue("mail"),
		FirstName:    entry.GetAttributeValue("givenName"),
		LastName:     entry.GetAttributeValue("sn"),
		UniversityID: entry.GetAttributeValue("employeeNumber"),
	}
	// Active Directory has no uid
	if user.Username == "" {
		user.Username = entry.GetAttributeValue("sAMAccountName")
	}
	if user.FirstName == "" && user.LastName == "" {
		user.LastName = entry.GetAttributeValue("cn")
	}
	if user.UniversityID == "" {
		user.UniversityID = user.Username
	}
	return user, nil
}

// memberValue returns the value stored in the group's member attribute for username
func (s *LDAPService) memberValue(conn *ldap.Conn, username string) (string, error) {
	if s.memberAttr() != "member" && s.memberAttr() != "uniqueMember" {
		return username, nil
	}
	entry, err := s.findUser(conn, username)
	if err != nil {
		return "", err
	}
	return entry.DN, nil
}

func (s *LDAPService) memberAttr() string {
	if s.config.MemberAttr == "" {
		return "memberUid"
	}
	return s.config.MemberAttr
}

// AddGroupMember adds username to groupDN; an existing membership is not an error
func (s *LDAPService) AddGroupMember(groupDN, username string) error {
	return s.modifyGroup(groupDN, username, true)
}

// RemoveGroupMember removes username from groupDN; a missing membership is not an error
func (s *LDAPService) RemoveGroupMember(groupDN, username string) error {
	return s.modifyGroup(groupDN, username, false)
}

func (s *LDAPService) modifyGroup(groupDN, username string, add bool) error {
	conn, err := s.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	value, err := s.memberValue(conn, username)
	if err != nil {
		return err
	}

	req := ldap.NewModifyRequest(groupDN, nil)
	if add {
		req.Add(s.memberAttr(), []string{value})
	} else {
		req.Delete(s.memberAttr(), []string{value})
	}

	err = conn.Modify(req)
	switch {
	case err == nil:
		return nil
	case add && ldap.IsErrorWithCode(err, ldap.LDAPResultAttributeOrValueExists):
		return nil
	case !add && ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchAttribute):
		return nil
	}
	return fmt.Errorf("failed to update LDAP group %s: %w", groupDN, err)
}
