package vasp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmatter/ingot/internal/checker"
	"github.com/hmatter/ingot/internal/keywords"
	"github.com/hmatter/ingot/internal/potdb"
	"github.com/hmatter/ingot/internal/vaspdata"
)

func newSetupChecker(t *testing.T, dir string, pk keywords.ProgramKeys, s *vaspdata.Structure) *Checker {
	t.Helper()
	db, err := potdb.Default()
	require.NoError(t, err)
	if pk == nil {
		pk = keywords.ProgramKeys{}
	}
	return New(&keywords.Keywords{
		Name:        dir,
		Program:     ProgramName,
		ProgramKeys: pk,
		Structure:   s,
	}, db)
}

func readIncar(t *testing.T, dir string) vaspdata.Incar {
	t.Helper()
	inc, err := vaspdata.ReadIncar(filepath.Join(dir, FileIncar))
	require.NoError(t, err)
	return inc
}

func TestSetUpProgramInputWritesFullSet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "opt1")
	c := newSetupChecker(t, dir, keywords.ProgramKeys{"IBRION": 2.0}, testStructure())

	require.NoError(t, c.SetUpProgramInput(context.Background()))

	assert.FileExists(t, filepath.Join(dir, FilePoscar))
	assert.FileExists(t, filepath.Join(dir, FilePotcar))
	assert.FileExists(t, filepath.Join(dir, FileKpoints))
	assert.FileExists(t, filepath.Join(dir, FileIncar))

	assert.Equal(t, "2", readIncar(t, dir)["IBRION"])
	assert.True(t, c.IsReadyToRun(context.Background(), ""))
}

func TestSetUpProgramInputNoStructureSource(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "opt1")
	c := newSetupChecker(t, dir, nil, nil)

	err := c.SetUpProgramInput(context.Background())
	require.ErrorIs(t, err, checker.ErrMissingStructure)
}

func TestPoscarSetupKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	onDisk := testStructure()
	onDisk.Sites[0].Coords = [3]float64{0.1, 0.1, 0.1}
	require.NoError(t, vaspdata.WritePoscar(filepath.Join(dir, FilePoscar), onDisk))

	// The in-memory structure must lose to the file already on disk.
	c := newSetupChecker(t, dir, nil, testStructure())
	require.NoError(t, c.SetUpProgramInput(context.Background()))

	got, err := vaspdata.ReadPoscar(filepath.Join(dir, FilePoscar))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, got.Sites[0].Coords[0], 1e-9)
}

func TestPoscarSetupCoordinateOverrideWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, vaspdata.WritePoscar(filepath.Join(dir, FilePoscar), testStructure()))

	donor := testStructure()
	donor.Sites[2].Coords = [3]float64{0.3, 0.3, 0.3}
	donorPath := filepath.Join(t.TempDir(), "defect_poscar")
	require.NoError(t, vaspdata.WritePoscar(donorPath, donor))

	c := newSetupChecker(t, dir, keywords.ProgramKeys{
		keywords.PKCoordinates: []any{donorPath},
	}, nil)
	require.NoError(t, c.SetUpProgramInput(context.Background()))

	got, err := vaspdata.ReadPoscar(filepath.Join(dir, FilePoscar))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, got.Sites[2].Coords[0], 1e-9)
	// The template's lattice survives the graft.
	assert.InDelta(t, 4.0, got.Lattice[0][0], 1e-9)
}

func TestPoscarSetupCoordinateOverrideSiteMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, vaspdata.WritePoscar(filepath.Join(dir, FilePoscar), testStructure()))

	donor := testStructure()
	donor.Sites = donor.Sites[:2]
	donorPath := filepath.Join(t.TempDir(), "short_poscar")
	require.NoError(t, vaspdata.WritePoscar(donorPath, donor))

	c := newSetupChecker(t, dir, keywords.ProgramKeys{
		keywords.PKCoordinates: []any{donorPath},
	}, nil)

	err := c.SetUpProgramInput(context.Background())
	var confErr *checker.ConfigurationError
	require.ErrorAs(t, err, &confErr)
}

func TestKpointsSetup(t *testing.T) {
	testCases := []struct {
		name      string
		pk        keywords.ProgramKeys
		wantGrid  [3]int
		wantStyle string
		expectErr bool
	}{
		{
			name:      "default mesh",
			pk:        nil,
			wantGrid:  [3]int{2, 2, 2},
			wantStyle: vaspdata.StyleMonkhorst,
		},
		{
			name:      "explicit monkhorst",
			pk:        keywords.ProgramKeys{keywords.PKKpoints: []any{3.0, 3.0, 3.0, "M"}},
			wantGrid:  [3]int{3, 3, 3},
			wantStyle: vaspdata.StyleMonkhorst,
		},
		{
			name:      "gamma centered",
			pk:        keywords.ProgramKeys{keywords.PKKpoints: []any{1.0, 2.0, 5.0, "G"}},
			wantGrid:  [3]int{1, 2, 5},
			wantStyle: vaspdata.StyleGamma,
		},
		{
			name:      "unknown style",
			pk:        keywords.ProgramKeys{keywords.PKKpoints: []any{2.0, 2.0, 2.0, "L"}},
			expectErr: true,
		},
		{
			name:      "short spec",
			pk:        keywords.ProgramKeys{keywords.PKKpoints: []any{2.0, 2.0}},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			c := newSetupChecker(t, dir, tc.pk, testStructure())

			err := c.SetUpProgramInput(context.Background())
			if tc.expectErr {
				var confErr *checker.ConfigurationError
				require.ErrorAs(t, err, &confErr)
				return
			}
			require.NoError(t, err)

			kp, err := vaspdata.ReadKpoints(filepath.Join(dir, FileKpoints))
			require.NoError(t, err)
			assert.Equal(t, tc.wantGrid, kp.Grid)
			assert.Equal(t, tc.wantStyle, kp.Style)
		})
	}
}

func TestPotcarSetup(t *testing.T) {
	dir := t.TempDir()
	c := newSetupChecker(t, dir, nil, testStructure())
	require.NoError(t, c.SetUpProgramInput(context.Background()))

	pot, err := vaspdata.ReadPotcar(filepath.Join(dir, FilePotcar))
	require.NoError(t, err)
	require.Len(t, pot, 2)
	assert.Equal(t, "Al", pot[0].Symbol)
	assert.Equal(t, "PAW_PBE", pot[0].Functional)
	assert.Equal(t, "O", pot[1].Symbol)
}

func TestPotcarSetupVariantOverride(t *testing.T) {
	dir := t.TempDir()
	c := newSetupChecker(t, dir, keywords.ProgramKeys{
		keywords.PKPPSetup: map[string]any{"O": "O_s"},
	}, testStructure())
	require.NoError(t, c.SetUpProgramInput(context.Background()))

	pot, err := vaspdata.ReadPotcar(filepath.Join(dir, FilePotcar))
	require.NoError(t, err)
	require.Len(t, pot, 2)
	assert.Equal(t, "O_s", pot[1].Symbol)
	assert.InDelta(t, 283.879, pot[1].Enmax, 1e-6)
}

func TestPotcarSetupFunctionalFamily(t *testing.T) {
	dir := t.TempDir()
	c := newSetupChecker(t, dir, keywords.ProgramKeys{
		keywords.PKXC: "pw91",
	}, testStructure())
	require.NoError(t, c.SetUpProgramInput(context.Background()))

	pot, err := vaspdata.ReadPotcar(filepath.Join(dir, FilePotcar))
	require.NoError(t, err)
	assert.Equal(t, "PAW_GGA", pot[0].Functional)
}

func TestPotcarSetupUnknownFunctional(t *testing.T) {
	c := newSetupChecker(t, t.TempDir(), keywords.ProgramKeys{
		keywords.PKXC: "lda",
	}, testStructure())

	err := c.SetUpProgramInput(context.Background())
	var confErr *checker.ConfigurationError
	require.ErrorAs(t, err, &confErr)
}

func TestIncarSetupCutoffMultiplierWins(t *testing.T) {
	dir := t.TempDir()
	c := newSetupChecker(t, dir, keywords.ProgramKeys{
		"ENCUT":                  300.0,
		keywords.PKMultiplyEncut: 1.5,
	}, testStructure())
	require.NoError(t, c.SetUpProgramInput(context.Background()))

	// Max ENMAX over Al (240.3) and O (400.0) is 400.0.
	assert.Equal(t, "600", readIncar(t, dir)["ENCUT"])
}

func TestIncarSetupExplicitCutoffWithoutMultiplier(t *testing.T) {
	dir := t.TempDir()
	c := newSetupChecker(t, dir, keywords.ProgramKeys{"ENCUT": 300.0}, testStructure())
	require.NoError(t, c.SetUpProgramInput(context.Background()))

	assert.Equal(t, "300", readIncar(t, dir)["ENCUT"])
}

func TestIncarSetupElectronCount(t *testing.T) {
	dir := t.TempDir()
	c := newSetupChecker(t, dir, keywords.ProgramKeys{
		keywords.PKCharge: 1.0,
	}, testStructure())
	require.NoError(t, c.SetUpProgramInput(context.Background()))

	// Two Al at 3 electrons plus one O at 6, minus a charge of 1.
	assert.Equal(t, "11", readIncar(t, dir)["NELECT"])
}

func TestIncarSetupMagmom(t *testing.T) {
	testCases := []struct {
		name      string
		value     string
		want      string
		expectErr bool
	}{
		{name: "per species", value: "5 0.6", want: "2*5 1*0.6"},
		{name: "per site", value: "5 5 0.6", want: "5 5 0.6"},
		{name: "length mismatch", value: "5 5 5 5", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			c := newSetupChecker(t, dir, keywords.ProgramKeys{
				keywords.PKSetMagmom: tc.value,
			}, testStructure())

			err := c.SetUpProgramInput(context.Background())
			if tc.expectErr {
				var confErr *checker.ConfigurationError
				require.ErrorAs(t, err, &confErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, readIncar(t, dir)["MAGMOM"])
		})
	}
}

func TestIncarSetupDirectivesAreNotTags(t *testing.T) {
	dir := t.TempDir()
	c := newSetupChecker(t, dir, keywords.ProgramKeys{
		keywords.PKXC: "pbe",
		"IBRION":      2.0,
	}, testStructure())
	require.NoError(t, c.SetUpProgramInput(context.Background()))

	inc := readIncar(t, dir)
	assert.Equal(t, "2", inc["IBRION"])
	assert.NotContains(t, inc, keywords.PKXC)
}

func TestSetUpProgramInputNEB(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "neb1")
	c := newSetupChecker(t, dir, keywords.ProgramKeys{keywords.PKImages: 2}, nil)

	start := testStructure()
	mid := testStructure()
	mid.Sites[2].Coords = [3]float64{0.3, 0.3, 0.3}
	end := testStructure()
	end.Sites[2].Coords = [3]float64{0.35, 0.35, 0.35}
	last := testStructure()
	last.Sites[2].Coords = [3]float64{0.4, 0.4, 0.4}

	images := []*vaspdata.Structure{start, mid, end, last}
	require.NoError(t, c.SetUpProgramInputNEB(context.Background(), images))

	for i := 0; i < len(images); i++ {
		got, err := vaspdata.ReadPoscar(filepath.Join(imageDir(dir, i), FilePoscar))
		require.NoError(t, err)
		assert.True(t, images[i].Matches(got, 1e-6), "image %d", i)
	}

	// Shared control files live at the top level.
	assert.FileExists(t, filepath.Join(dir, FileIncar))
	assert.FileExists(t, filepath.Join(dir, FileKpoints))
	assert.FileExists(t, filepath.Join(dir, FilePotcar))
	assert.Equal(t, "2", readIncar(t, dir)["IMAGES"])
}

func TestSetUpProgramInputNEBNoImages(t *testing.T) {
	c := newSetupChecker(t, t.TempDir(), keywords.ProgramKeys{keywords.PKImages: 2}, nil)

	err := c.SetUpProgramInputNEB(context.Background(), nil)
	var confErr *checker.ConfigurationError
	require.ErrorAs(t, err, &confErr)
}
