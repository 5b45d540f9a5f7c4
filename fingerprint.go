package pyext

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"shanhu.io/misc/errcode"
)

// targetDigest is the part of a target that determines the generated build
// files. Two configure runs with equal digests produce identical builds.
type targetDigest struct {
	Name               string
	Sources            []string
	Defines            []string
	IncludeDirs        []string
	LinkLibraries      []string
	StartStatic        bool
	EndStatic          bool
	CXXStandard        int
	InstallDestination string
	ExtSuffix          string
	Eigen3Dir          string `json:",omitempty"`
}

func makeFingerprint(t *Target) (string, error) {
	d := &targetDigest{
		Name:               t.Name,
		Sources:            t.Sources,
		Defines:            t.Defines,
		IncludeDirs:        t.IncludeDirs,
		LinkLibraries:      t.LinkLibraries,
		StartStatic:        t.LinkSearchStartStatic,
		EndStatic:          t.LinkSearchEndStatic,
		CXXStandard:        t.CXXStandard,
		InstallDestination: t.InstallDestination,
		ExtSuffix:          t.ExtSuffix(),
		Eigen3Dir:          t.Eigen3Dir,
	}

	buf := new(bytes.Buffer)
	fmt.Fprintln(buf, "target")
	bs, err := json.Marshal(d)
	if err != nil {
		return "", errcode.Annotate(err, "json marshal")
	}
	buf.Write(bs)

	sum := sha256.Sum256(buf.Bytes())
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
