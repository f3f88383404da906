package dataset

// TrainValidateDataset pairs a training and a validation stream so the
// training loop can hold a single handle to both.
type TrainValidateDataset struct {
	Train *StreamFileDataset
	Val   *StreamFileDataset
}

// NewTrainValidateDataset opens the training and validation files with the
// given batch size and delimiter, sharing no state between them.
func NewTrainValidateDataset(trainPath, valPath string, batchSize int, delimiter byte, seed int64) (*TrainValidateDataset, error) {
	train, err := Open(trainPath, batchSize, delimiter, seed)
	if err != nil {
		return nil, err
	}
	val, err := Open(valPath, batchSize, delimiter, seed)
	if err != nil {
		train.Close()
		return nil, err
	}
	return &TrainValidateDataset{Train: train, Val: val}, nil
}

// Close releases both underlying file handles.
func (d *TrainValidateDataset) Close() error {
	errTrain := d.Train.Close()
	errVal := d.Val.Close()
	if errTrain != nil {
		return errTrain
	}
	return errVal
}
