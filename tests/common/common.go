package common

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"

	yaml "gopkg.in/yaml.v2"

	"eve/core/models"
)

func InitConfig() *models.Config {
	var cfg models.Config

	// get this file's path
	_, filename, _, _ := runtime.Caller(0)
	folderpath := path.Dir(filename)

	// retrieve common's test.config
	f, err := os.Open(fmt.Sprintf("%s/test.config.yml", folderpath))
	if err != nil {
		processError(err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(&cfg)
	if err != nil {
		processError(err)
	}

	return &cfg
}

func processError(err error) {
	fmt.Println(err)
	os.Exit(2)
}

// WriteDemoFile drops a fixture under dir and returns its path.
func WriteDemoFile(dir string, name string, contents string) (string, error) {
	filePath := filepath.Join(dir, name)
	if err := os.WriteFile(filePath, []byte(contents), 0644); err != nil {
		return "", err
	}
	return filePath, nil
}

// Demo call-file for a GATK-style caller: QD and DP live in INFO.
// Positions 100..102 carry passing SNPs (A/T/T); 103 is an indel
// record and 104 fails the filter, so both drop out of extraction.
const GatkDemoVcf = `##fileformat=VCFv4.1
##source=gatk
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	sample1
1	100	.	G	A	60.0	PASS	DP=20;QD=25.0	GT:GQ	1/1:50
1	101	.	C	T	45.0	.	DP=18;QD=12.5	GT:GQ	0/1:40
1	102	.	G	T	30.0	PASS	DP=22;QD=8.0	GT:GQ	0/1:35
1	103	.	G	GTT	50.0	PASS	DP=22;QD=9.0	GT:GQ	0/1:35
1	104	.	A	C	10.0	q10	DP=15;QD=2.0	GT:GQ	1/1:20
`

// Demo call-file for an mpileup-style caller: genotype quality in
// the per-sample block, total depth in INFO. Positions 101..103
// with alleles T/T/C.
const MpileupDemoVcf = `##fileformat=VCFv4.1
##source=mpileup
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	sample1
1	101	.	C	T	40.0	PASS	DP=18	GT:GQ	0/1:42
1	102	.	G	T	35.0	PASS	DP=22	GT:GQ	0/1:38
1	103	.	A	C	33.0	PASS	DP=25	GT:GQ	1/1:30
`

// Demo call-file for a VarScan-style caller: per-sample ADP depth,
// no INFO depth at all.
const VarScanDemoVcf = `##fileformat=VCFv4.1
##source=varscan
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	sample1
1	100	.	G	A	55.0	PASS	.	GT:GQ:ADP	1/1:48:21
1	102	.	G	T	28.0	PASS	.	GT:GQ:ADP	0/1:33:22
`

// Ground-truth call-file marking position 101 as allele T.
const TruthDemoVcf = `##fileformat=VCFv4.1
##source=truth
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
1	101	.	C	T	.	PASS	.
1	999	.	A	G	.	PASS	.
`

// Simulator mutation log: chromosome, position, original base,
// mutated base, haplotype id. The 100 row carries an ambiguity
// code and must be skipped.
const SimulatorLogDemo = `chr1	101	C	T	1
chr1	100	A	R	1
chr1	102	G	T	2
chr1	999	A	G	1
`
