// SPDX-License-Identifier: Apache-2.0

// Package vsish looks up which VMM group a peer VM id belongs to by querying
// the ESX vsish tool.
package vsish

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const (
	DefaultPath = "/sbin/vsish"
)

var (
	LookupErr      = errors.New("unable to run vsish lookup")
	EmptyLeaderErr = errors.New("vsish returned an empty vmm leader")
)

type Info struct {
	Leader    string
	GroupInfo string
}

type Client struct {
	path string
}

// New returns a Client running the vsish binary at path, or DefaultPath if
// path is empty.
func New(path string) *Client {
	if path == "" {
		path = DefaultPath
	}
	return &Client{path: path}
}

// Lookup resolves vmid (as reported by vsock.Stream.PeerHostVMID) to its
// VMM leader, then fetches the leader's group info.
func (c *Client) Lookup(ctx context.Context, vmid int32) (*Info, error) {
	leader, err := c.get(ctx, fmt.Sprintf("/userworld/cartel/%d/vmmLeader", vmid))
	if err != nil {
		return nil, err
	}
	leader = strings.TrimSpace(leader)
	if leader == "" {
		return nil, EmptyLeaderErr
	}
	group, err := c.get(ctx, fmt.Sprintf("/vm/%s/vmmGroupInfo", leader))
	if err != nil {
		return nil, err
	}
	return &Info{
		Leader:    leader,
		GroupInfo: group,
	}, nil
}

func (c *Client) get(ctx context.Context, node string) (string, error) {
	out, err := exec.CommandContext(ctx, c.path, "-e", "get", node).Output()
	if err != nil {
		return "", errors.Join(LookupErr, fmt.Errorf("get %s: %w", node, err))
	}
	return string(out), nil
}
