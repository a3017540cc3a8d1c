package attribs

import "seisattrib/attrib"

func init() {
	attrib.Register(storageTemplate, newStorage)
	attrib.Register(similarityTemplate, newSimilarity)
	attrib.Register(steeringTemplate, newSteering)
	attrib.Register(energyTemplate, newEnergy)
}
